package hasher

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes é o limite do bcrypt; bytes além disso seriam rejeitados.
const MaxPasswordBytes = 72

// PasswordHasher define o contrato de hashing de senhas.
type PasswordHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, hash string) bool
}

// Bcrypt implementa PasswordHasher com salt aleatório por chamada.
type Bcrypt struct {
	cost int
}

// NewBcrypt cria o hasher; custos fora da faixa do bcrypt viram o DefaultCost.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

// Hash gera o hash da senha. Erros aqui são operacionais (e.g. senha longa demais).
func (b *Bcrypt) Hash(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), b.cost)
	if err != nil {
		return "", fmt.Errorf("falha ao gerar hash da senha: %w", err)
	}
	return string(hashed), nil
}

// Verify compara em tempo constante. Qualquer divergência ou hash malformado é false.
func (b *Bcrypt) Verify(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

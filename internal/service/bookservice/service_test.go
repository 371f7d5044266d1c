package bookservice_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bookworm/internal/domain"
	apperror "bookworm/internal/errors"
	"bookworm/internal/pkg/logger"
	"bookworm/internal/pkg/storage"
	"bookworm/internal/service/bookservice"
)

// MockBookRepository é uma implementação mock de domain.BookRepository.
type MockBookRepository struct {
	mock.Mock
}

func (m *MockBookRepository) Save(ctx context.Context, book domain.Book) (domain.Book, error) {
	args := m.Called(ctx, book)
	return args.Get(0).(domain.Book), args.Error(1)
}

func (m *MockBookRepository) FindByID(ctx context.Context, id string) (domain.Book, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Book), args.Error(1)
}

func (m *MockBookRepository) FindPage(ctx context.Context, filter domain.BookFilter) ([]domain.Book, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Book), args.Int(1), args.Error(2)
}

func (m *MockBookRepository) FindByOwner(ctx context.Context, userID string) ([]domain.Book, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Book), args.Error(1)
}

func (m *MockBookRepository) Delete(ctx context.Context, id string, userID string) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

// MockImageStore é um mock do object store.
type MockImageStore struct {
	mock.Mock
}

func (m *MockImageStore) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, data, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockImageStore) Delete(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

// memoryBookRepository ordena como o banco: created_at DESC, id DESC.
type memoryBookRepository struct {
	mu    sync.Mutex
	books []domain.Book
	clock time.Time
}

func newMemoryBookRepository() *memoryBookRepository {
	return &memoryBookRepository{clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (r *memoryBookRepository) Save(_ context.Context, book domain.Book) (domain.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = r.clock.Add(time.Second)
	book.ID = uuid.NewString()
	book.CreatedAt = r.clock
	r.books = append(r.books, book)
	return book, nil
}

func (r *memoryBookRepository) FindByID(_ context.Context, id string) (domain.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.books {
		if b.ID == id {
			return b, nil
		}
	}
	return domain.Book{}, apperror.NewNotFoundError(bookservice.MsgBookNotFound)
}

func (r *memoryBookRepository) sorted() []domain.Book {
	out := append([]domain.Book(nil), r.books...)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *memoryBookRepository) FindPage(_ context.Context, f domain.BookFilter) ([]domain.Book, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sorted()
	start := f.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return append([]domain.Book{}, all[start:end]...), len(all), nil
}

func (r *memoryBookRepository) FindByOwner(_ context.Context, userID string) ([]domain.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Book{}
	for _, b := range r.sorted() {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *memoryBookRepository) Delete(_ context.Context, id string, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, b := range r.books {
		if b.ID == id && b.UserID == userID {
			r.books = append(r.books[:i], r.books[i+1:]...)
			return nil
		}
	}
	return apperror.NewNotFoundError(bookservice.MsgBookNotFound)
}

// memoryImageStore guarda objetos em memória.
type memoryImageStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	n       int
}

func newMemoryImageStore() *memoryImageStore {
	return &memoryImageStore{objects: map[string][]byte{}}
}

func (s *memoryImageStore) Upload(_ context.Context, data []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	url := fmt.Sprintf("https://cdn.test/books/%d.png", s.n)
	s.objects[url] = data
	return url, nil
}

func (s *memoryImageStore) Delete(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, url)
	return nil
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func validInput() domain.BookInput {
	return domain.BookInput{
		Title:   "Dune",
		Caption: "Great",
		Image:   base64.StdEncoding.EncodeToString(pngBytes),
		Rating:  5,
	}
}

func quietLogger() logger.Logger {
	return logger.NewLoggerWithWriter(io.Discard, "debug")
}

var alice = domain.User{ID: "alice-id", Username: "alice", ProfileImage: "https://img/alice"}
var bob = domain.User{ID: "bob-id", Username: "bob"}

// --- CreateBook ---

func TestCreateBook_Success(t *testing.T) {
	repo := new(MockBookRepository)
	images := new(MockImageStore)
	svc := bookservice.NewService(repo, images, bookservice.Config{}, quietLogger())

	images.On("Upload", mock.Anything, pngBytes, "image/png").Return("https://cdn.test/a.png", nil)
	repo.On("Save", mock.Anything, domain.Book{
		Title: "Dune", Caption: "Great", Image: "https://cdn.test/a.png", Rating: 5, UserID: alice.ID,
	}).Return(domain.Book{ID: "b-1", Title: "Dune", Image: "https://cdn.test/a.png", UserID: alice.ID}, nil)

	book, err := svc.CreateBook(context.Background(), alice, validInput())

	require.NoError(t, err)
	assert.Equal(t, "b-1", book.ID)
	require.NotNil(t, book.Owner)
	assert.Equal(t, "alice", book.Owner.Username)
	repo.AssertExpectations(t)
	images.AssertExpectations(t)
}

func TestCreateBook_DataURIContentType(t *testing.T) {
	repo := new(MockBookRepository)
	images := new(MockImageStore)
	svc := bookservice.NewService(repo, images, bookservice.Config{}, quietLogger())

	in := validInput()
	in.Image = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))

	images.On("Upload", mock.Anything, []byte("jpeg-bytes"), "image/jpeg").Return("https://cdn.test/a.jpg", nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(domain.Book{ID: "b-1"}, nil)

	_, err := svc.CreateBook(context.Background(), alice, in)

	require.NoError(t, err)
	images.AssertExpectations(t)
}

func TestCreateBook_MissingFields(t *testing.T) {
	cases := map[string]func(*domain.BookInput){
		"title":   func(in *domain.BookInput) { in.Title = " " },
		"caption": func(in *domain.BookInput) { in.Caption = "" },
		"image":   func(in *domain.BookInput) { in.Image = "" },
		"rating":  func(in *domain.BookInput) { in.Rating = 0 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			repo := new(MockBookRepository)
			images := new(MockImageStore)
			svc := bookservice.NewService(repo, images, bookservice.Config{}, quietLogger())
			in := validInput()
			mutate(&in)

			_, err := svc.CreateBook(context.Background(), alice, in)

			var ve *apperror.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, bookservice.MsgAllFieldsRequired, ve.Msg)
			images.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCreateBook_InvalidBase64(t *testing.T) {
	images := new(MockImageStore)
	svc := bookservice.NewService(new(MockBookRepository), images, bookservice.Config{}, quietLogger())
	in := validInput()
	in.Image = "%%% not base64 %%%"

	_, err := svc.CreateBook(context.Background(), alice, in)

	var ve *apperror.ValidationError
	require.ErrorAs(t, err, &ve)
	images.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
}

// TestCreateBook_UploadFailureLeavesNoRecord garante que nada é persistido.
func TestCreateBook_UploadFailureLeavesNoRecord(t *testing.T) {
	repo := new(MockBookRepository)
	images := new(MockImageStore)
	svc := bookservice.NewService(repo, images, bookservice.Config{}, quietLogger())

	images.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("s3 down"))

	_, err := svc.CreateBook(context.Background(), alice, validInput())

	assert.IsType(t, &apperror.UpstreamError{}, err)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestCreateBook_SaveFailureRemovesUploadedImage(t *testing.T) {
	repo := new(MockBookRepository)
	images := new(MockImageStore)
	svc := bookservice.NewService(repo, images, bookservice.Config{}, quietLogger())

	dbErr := apperror.NewDBError("failed to insert book", errors.New("db down"))
	images.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return("https://cdn.test/a.png", nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(domain.Book{}, dbErr)
	images.On("Delete", mock.Anything, "https://cdn.test/a.png").Return(nil)

	_, err := svc.CreateBook(context.Background(), alice, validInput())

	assert.ErrorIs(t, err, dbErr)
	images.AssertExpectations(t)
}

func TestCreateBook_SaveFailureCleanupOutlivesCancelledRequest(t *testing.T) {
	repo := new(MockBookRepository)
	images := new(MockImageStore)
	svc := bookservice.NewService(repo, images, bookservice.Config{}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	images.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return("https://cdn.test/a.png", nil)
	repo.On("Save", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(domain.Book{}, context.Canceled)
	images.On("Delete", mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil }), "https://cdn.test/a.png").
		Return(nil)

	_, err := svc.CreateBook(ctx, alice, validInput())

	assert.ErrorIs(t, err, context.Canceled)
	images.AssertExpectations(t)
}

// --- ListBooks ---

func TestListBooks_DefaultsAndClamp(t *testing.T) {
	tests := []struct {
		name          string
		page, limit   int
		expectedPage  int
		expectedLimit int
	}{
		{"defaults", 0, 0, 1, 5},
		{"negative", -3, -1, 1, 5},
		{"explicit", 2, 10, 2, 10},
		{"clamped", 1, 500, 1, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockBookRepository)
			svc := bookservice.NewService(repo, new(MockImageStore), bookservice.Config{}, quietLogger())

			repo.On("FindPage", mock.Anything, domain.BookFilter{Page: tt.expectedPage, Limit: tt.expectedLimit}).
				Return([]domain.Book(nil), 0, nil)

			page, err := svc.ListBooks(context.Background(), tt.page, tt.limit)

			require.NoError(t, err)
			assert.Equal(t, tt.expectedPage, page.CurrentPage)
			assert.NotNil(t, page.Books)
			assert.Equal(t, 0, page.TotalPages)
			repo.AssertExpectations(t)
		})
	}
}

func TestListBooks_HugePageKeepsOffsetNonNegative(t *testing.T) {
	repo := new(MockBookRepository)
	svc := bookservice.NewService(repo, new(MockImageStore), bookservice.Config{}, quietLogger())

	var got domain.BookFilter
	repo.On("FindPage", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(domain.BookFilter) }).
		Return([]domain.Book(nil), 12, nil)

	page, err := svc.ListBooks(context.Background(), 2305843009213693953, 5)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, got.Offset(), 0)
	assert.Equal(t, 5, got.Limit)
	assert.Empty(t, page.Books)
	assert.Equal(t, 3, page.TotalPages)
}

func TestListBooks_RepoError(t *testing.T) {
	repo := new(MockBookRepository)
	svc := bookservice.NewService(repo, new(MockImageStore), bookservice.Config{}, quietLogger())
	repo.On("FindPage", mock.Anything, mock.Anything).Return([]domain.Book(nil), 0, errors.New("db down"))

	_, err := svc.ListBooks(context.Background(), 1, 5)

	assert.Error(t, err)
}

// TestListBooks_TwelveRecords verifica as páginas 1..3 com limite 5.
func TestListBooks_TwelveRecords(t *testing.T) {
	repo := newMemoryBookRepository()
	svc := bookservice.NewService(repo, newMemoryImageStore(), bookservice.Config{}, quietLogger())
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		in := validInput()
		in.Title = fmt.Sprintf("Book %02d", i)
		_, err := svc.CreateBook(ctx, alice, in)
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	var previous time.Time
	for _, tc := range []struct{ page, size int }{{1, 5}, {2, 5}, {3, 2}, {4, 0}} {
		res, err := svc.ListBooks(ctx, tc.page, 5)
		require.NoError(t, err)
		assert.Equal(t, 12, res.TotalBooks)
		assert.Equal(t, 3, res.TotalPages)
		assert.Equal(t, tc.page, res.CurrentPage)
		require.Len(t, res.Books, tc.size)

		for _, b := range res.Books {
			assert.False(t, seen[b.ID], "book %s appeared twice", b.ID)
			seen[b.ID] = true
			if !previous.IsZero() {
				assert.True(t, b.CreatedAt.Before(previous), "feed must be newest first")
			}
			previous = b.CreatedAt
		}
	}
	assert.Len(t, seen, 12)
}

func TestListBooksByOwner_EmptyIsNotNil(t *testing.T) {
	repo := new(MockBookRepository)
	svc := bookservice.NewService(repo, new(MockImageStore), bookservice.Config{}, quietLogger())
	repo.On("FindByOwner", mock.Anything, alice.ID).Return([]domain.Book(nil), nil)

	books, err := svc.ListBooksByOwner(context.Background(), alice)

	require.NoError(t, err)
	assert.NotNil(t, books)
	assert.Empty(t, books)
}

// --- DeleteBook ---

func TestDeleteBook_Success(t *testing.T) {
	repo := new(MockBookRepository)
	images := new(MockImageStore)
	svc := bookservice.NewService(repo, images, bookservice.Config{}, quietLogger())

	repo.On("FindByID", mock.Anything, "b-1").Return(domain.Book{ID: "b-1", UserID: alice.ID, Image: "https://cdn.test/a.png"}, nil)
	images.On("Delete", mock.Anything, "https://cdn.test/a.png").Return(nil)
	repo.On("Delete", mock.Anything, "b-1", alice.ID).Return(nil)

	require.NoError(t, svc.DeleteBook(context.Background(), alice, "b-1"))
	repo.AssertExpectations(t)
	images.AssertExpectations(t)
}

func TestDeleteBook_NotOwner(t *testing.T) {
	repo := new(MockBookRepository)
	images := new(MockImageStore)
	svc := bookservice.NewService(repo, images, bookservice.Config{}, quietLogger())

	repo.On("FindByID", mock.Anything, "b-1").Return(domain.Book{ID: "b-1", UserID: alice.ID, Image: "https://cdn.test/a.png"}, nil)

	err := svc.DeleteBook(context.Background(), bob, "b-1")

	var fe *apperror.ForbiddenError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, bookservice.MsgNotAuthorized, fe.Msg)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
	images.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDeleteBook_NotFound(t *testing.T) {
	repo := new(MockBookRepository)
	svc := bookservice.NewService(repo, new(MockImageStore), bookservice.Config{}, quietLogger())
	repo.On("FindByID", mock.Anything, "nope").Return(domain.Book{}, apperror.NewNotFoundError(bookservice.MsgBookNotFound))

	err := svc.DeleteBook(context.Background(), alice, "nope")

	assert.True(t, apperror.IsNotFound(err))
}

// TestDeleteBook_ImageCleanupFailureIsLogged: a falha do object store não impede o delete.
func TestDeleteBook_ImageCleanupFailureIsLogged(t *testing.T) {
	repo := new(MockBookRepository)
	images := new(MockImageStore)
	var buf bytes.Buffer
	svc := bookservice.NewService(repo, images, bookservice.Config{}, logger.NewLoggerWithWriter(&buf, "debug"))

	repo.On("FindByID", mock.Anything, "b-1").Return(domain.Book{ID: "b-1", UserID: alice.ID, Image: "https://cdn.test/a.png"}, nil)
	images.On("Delete", mock.Anything, "https://cdn.test/a.png").Return(errors.New("s3 down"))
	repo.On("Delete", mock.Anything, "b-1", alice.ID).Return(nil)

	require.NoError(t, svc.DeleteBook(context.Background(), alice, "b-1"))
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
	assert.Contains(t, buf.String(), `"book_id":"b-1"`)
	assert.Contains(t, buf.String(), "https://cdn.test/a.png")
	repo.AssertExpectations(t)
}

func TestDeleteBook_ForeignImageIsSkippedQuietly(t *testing.T) {
	repo := new(MockBookRepository)
	images := new(MockImageStore)
	var buf bytes.Buffer
	svc := bookservice.NewService(repo, images, bookservice.Config{}, logger.NewLoggerWithWriter(&buf, "debug"))

	repo.On("FindByID", mock.Anything, "b-1").Return(domain.Book{ID: "b-1", UserID: alice.ID, Image: "https://elsewhere/x.png"}, nil)
	images.On("Delete", mock.Anything, "https://elsewhere/x.png").Return(storage.ErrForeignObject)
	repo.On("Delete", mock.Anything, "b-1", alice.ID).Return(nil)

	require.NoError(t, svc.DeleteBook(context.Background(), alice, "b-1"))
	assert.NotContains(t, buf.String(), `"level":"ERROR"`)
}

func TestDeleteBook_ConcurrentDeleteIsNotFound(t *testing.T) {
	repo := new(MockBookRepository)
	images := new(MockImageStore)
	svc := bookservice.NewService(repo, images, bookservice.Config{}, quietLogger())

	repo.On("FindByID", mock.Anything, "b-1").Return(domain.Book{ID: "b-1", UserID: alice.ID}, nil)
	repo.On("Delete", mock.Anything, "b-1", alice.ID).Return(apperror.NewNotFoundError(bookservice.MsgBookNotFound))

	err := svc.DeleteBook(context.Background(), alice, "b-1")

	assert.True(t, apperror.IsNotFound(err))
}

// TestOwnershipScenario cobre o fluxo alice/bob de ponta a ponta na camada de serviço.
func TestOwnershipScenario(t *testing.T) {
	repo := newMemoryBookRepository()
	images := newMemoryImageStore()
	svc := bookservice.NewService(repo, images, bookservice.Config{}, quietLogger())
	ctx := context.Background()

	book, err := svc.CreateBook(ctx, alice, validInput())
	require.NoError(t, err)
	assert.Equal(t, alice.ID, book.UserID)

	mine, err := svc.ListBooksByOwner(ctx, alice)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, book.ID, mine[0].ID)

	err = svc.DeleteBook(ctx, bob, book.ID)
	var fe *apperror.ForbiddenError
	require.ErrorAs(t, err, &fe)

	require.NoError(t, svc.DeleteBook(ctx, alice, book.ID))

	mine, err = svc.ListBooksByOwner(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, mine)
	assert.Empty(t, images.objects)
}

func TestDecodeImage(t *testing.T) {
	data, ct, err := bookservice.DecodeImage(base64.StdEncoding.EncodeToString(pngBytes))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)
	assert.Equal(t, "image/png", ct)

	data, ct, err = bookservice.DecodeImage("data:image/webp;base64," + base64.RawStdEncoding.EncodeToString([]byte("webp")))
	require.NoError(t, err)
	assert.Equal(t, []byte("webp"), data)
	assert.Equal(t, "image/webp", ct)

	_, _, err = bookservice.DecodeImage("data:image/png,plain")
	assert.Error(t, err)

	_, _, err = bookservice.DecodeImage("!!")
	assert.Error(t, err)
}

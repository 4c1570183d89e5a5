package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollcall/internal/attendancelist/models"
	"rollcall/internal/platform/database"
	"rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

type listStore interface {
	Create(ctx context.Context, l *models.List) error
	FindByID(ctx context.Context, id domain.ListID) (*models.List, error)
	FindActive(ctx context.Context) (*models.List, error)
	ListAll(ctx context.Context) ([]*models.List, error)
	Execute(ctx context.Context, id domain.ListID, validate func(*models.List) error, mutate func(*models.List)) (*models.List, error)
}

type ListStoreSuite struct {
	suite.Suite
	newStore func(t *testing.T) listStore
	store    listStore
	ctx      context.Context
}

func TestInMemoryListStoreSuite(t *testing.T) {
	suite.Run(t, &ListStoreSuite{
		newStore: func(*testing.T) listStore { return NewInMemory() },
	})
}

func TestSQLiteListStoreSuite(t *testing.T) {
	suite.Run(t, &ListStoreSuite{
		newStore: func(t *testing.T) listStore {
			db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "lists.db"))
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			t.Cleanup(func() { _ = db.Close() })
			return NewSQLite(db)
		},
	})
}

func (s *ListStoreSuite) SetupTest() {
	s.store = s.newStore(s.T())
	s.ctx = context.Background()
}

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newList(status models.Status, createdAt time.Time) *models.List {
	return &models.List{
		ID:                      domain.NewListID(),
		InstallationName:        "Plant A",
		MeetingDate:             "2026-03-01",
		MeetingTime:             "09:00",
		CourseTitle:             "Safety",
		CourseContent:           "Lockout procedures",
		InstructorName:          "Bia",
		InstructorRole:          "Supervisor",
		InstructorQualification: "NR-10",
		Location:                "Room 1",
		Status:                  status,
		StartTime:               createdAt,
		CreatedAt:               createdAt,
	}
}

func (s *ListStoreSuite) TestCreateAndFind() {
	l := newList(models.StatusActive, base)
	s.Require().NoError(s.store.Create(s.ctx, l))

	found, err := s.store.FindByID(s.ctx, l.ID)
	s.Require().NoError(err)
	s.Equal("Room 1", found.Location)
	s.Equal(models.StatusActive, found.Status)
	s.True(base.Equal(found.StartTime))
	s.Nil(found.EndTime)

	active, err := s.store.FindActive(s.ctx)
	s.Require().NoError(err)
	s.Equal(l.ID, active.ID)

	_, err = s.store.FindByID(s.ctx, domain.NewListID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ListStoreSuite) TestSingleActiveList() {
	s.Require().NoError(s.store.Create(s.ctx, newList(models.StatusActive, base)))

	err := s.store.Create(s.ctx, newList(models.StatusActive, base.Add(time.Minute)))
	s.Require().ErrorIs(err, ErrActiveListExists)
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)

	s.Require().NoError(s.store.Create(s.ctx, newList(models.StatusCompleted, base.Add(2*time.Minute))))
}

func (s *ListStoreSuite) TestNoActiveList() {
	_, err := s.store.FindActive(s.ctx)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ListStoreSuite) TestListAllNewestFirst() {
	older := newList(models.StatusCompleted, base)
	newer := newList(models.StatusActive, base.Add(time.Hour))
	s.Require().NoError(s.store.Create(s.ctx, older))
	s.Require().NoError(s.store.Create(s.ctx, newer))

	all, err := s.store.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(newer.ID, all[0].ID)
	s.Equal(older.ID, all[1].ID)
}

func (s *ListStoreSuite) TestExecuteCompletes() {
	l := newList(models.StatusActive, base)
	s.Require().NoError(s.store.Create(s.ctx, l))
	end := base.Add(75 * time.Minute)

	updated, err := s.store.Execute(s.ctx, l.ID,
		func(cur *models.List) error { return nil },
		func(cur *models.List) { s.Require().NoError(cur.Complete(end)) },
	)
	s.Require().NoError(err)
	s.Equal("1h15min", updated.Duration)

	found, err := s.store.FindByID(s.ctx, l.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, found.Status)
	s.Require().NotNil(found.EndTime)
	s.True(end.Equal(*found.EndTime))

	_, err = s.store.FindActive(s.ctx)
	s.Require().ErrorIs(err, sentinel.ErrNotFound, "completing frees the active slot")
	s.Require().NoError(s.store.Create(s.ctx, newList(models.StatusActive, base.Add(2*time.Hour))))
}

func (s *ListStoreSuite) TestExecuteValidationAborts() {
	l := newList(models.StatusActive, base)
	s.Require().NoError(s.store.Create(s.ctx, l))
	refusal := errors.New("refused")

	_, err := s.store.Execute(s.ctx, l.ID,
		func(*models.List) error { return refusal },
		func(cur *models.List) { cur.Status = models.StatusCompleted },
	)
	s.Require().ErrorIs(err, refusal)

	found, err := s.store.FindByID(s.ctx, l.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, found.Status)

	_, err = s.store.Execute(s.ctx, domain.NewListID(),
		func(*models.List) error { return nil }, func(*models.List) {})
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ListStoreSuite) TestConcurrentCreateSingleActive() {
	const goroutines = 20
	var wg sync.WaitGroup
	var created atomic.Int32
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.store.Create(s.ctx, newList(models.StatusActive, base.Add(time.Duration(i)*time.Second))); err == nil {
				created.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), created.Load())
}

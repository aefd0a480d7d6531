package fakeuserrepo

import (
	"sort"
	"strings"
	"sync"

	apperrors "github.com/cagkantasci/smartop/internal/errors"
	"github.com/cagkantasci/smartop/users"
	"github.com/google/uuid"
)

var _ users.Repo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	accounts map[string]*users.Account
	emailIds map[string]string // email to user id
	lock     sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		accounts: make(map[string]*users.Account),
		emailIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(account *users.Account) error {
	if account == nil || account.User.Email == "" {
		return apperrors.Wrapf(apperrors.ErrInvalidInput, "FakeUserRepo.Upsert email is required")
	}

	ur.lock.Lock()
	defer ur.lock.Unlock()

	if account.User.ID == "" {
		account.User.ID = uuid.New().String()
	}
	stored := *account
	ur.accounts[stored.User.ID] = &stored
	ur.emailIds[normaliseEmail(stored.User.Email)] = stored.User.ID
	return nil
}

func (ur *FakeUserRepo) GetByEmail(email string) (*users.Account, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[normaliseEmail(email)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	account := *ur.accounts[id]
	return &account, nil
}

func (ur *FakeUserRepo) GetByID(id string) (*users.Account, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	stored, ok := ur.accounts[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	account := *stored
	return &account, nil
}

func (ur *FakeUserRepo) List(offset, limit int) ([]*users.Account, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	list := make([]*users.Account, 0, len(ur.accounts))
	for _, v := range ur.accounts {
		account := *v
		list = append(list, &account)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].User.ID < list[j].User.ID
	})

	if offset >= len(list) {
		return nil, nil
	}
	end := len(list)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return list[offset:end], nil
}

func (ur *FakeUserRepo) SetBiometric(id string, enabled bool) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	account, ok := ur.accounts[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	account.User.BiometricEnabled = enabled
	return nil
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

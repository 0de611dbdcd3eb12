package fare

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/chris/transit-fare-engine/pkg/models"
	"github.com/chris/transit-fare-engine/pkg/storage"
)

const (
	defaultRefillThreshold = 500
	defaultRefillAmount    = 2000
)

// PoolView is a pool account together with its linked members.
type PoolView struct {
	Pool    models.Account
	Members []models.Account
}

func validPoolName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len([]rune(name)) < 2 {
		return "", ErrInvalidPoolName
	}
	return name, nil
}

func (e *Engine) getPool(ctx context.Context, poolID string) (*models.Account, error) {
	pool, err := e.store.GetAccount(ctx, poolID)
	if errors.Is(err, storage.ErrAccountNotFound) {
		return nil, ErrPoolNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pool: %w", err)
	}
	if !pool.IsPool() {
		return nil, ErrPoolNotFound
	}
	return pool, nil
}

func (e *Engine) ownedPool(ctx context.Context, poolID, requesterID string) (*models.Account, error) {
	pool, err := e.getPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if pool.HeadId != requesterID {
		return nil, ErrNotPoolOwner
	}
	return pool, nil
}

func (e *Engine) getRider(ctx context.Context, id string) (*models.Account, error) {
	acct, err := e.store.GetAccount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if acct.IsPool() {
		return nil, ErrNotRiderAccount
	}
	return acct, nil
}

// GetPool returns a pool and its members.
func (e *Engine) GetPool(ctx context.Context, poolID string) (*PoolView, error) {
	pool, err := e.getPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	members, err := e.store.ListPoolMembers(ctx, pool.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to list pool members: %w", err)
	}
	return &PoolView{Pool: *pool, Members: members}, nil
}

// CreatePool opens a shared balance owned by headID.
func (e *Engine) CreatePool(ctx context.Context, headID, name string) (*PoolView, error) {
	name, err := validPoolName(name)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(accountKey(headID))
	defer unlock()

	head, err := e.getRider(ctx, headID)
	if err != nil {
		return nil, err
	}
	if head.PoolId != "" {
		return nil, ErrAlreadyInPool
	}

	pool := models.Account{
		Id:                  shortID("pool_"),
		Kind:                models.KindPool,
		Name:                name,
		HeadId:              head.Id,
		AutoRefillThreshold: defaultRefillThreshold,
		AutoRefillAmount:    defaultRefillAmount,
		Version:             1,
		CreatedAt:           e.now(),
	}
	b := &storage.Batch{NewAccounts: []models.Account{pool}}
	b.Account(head).Pool = &storage.PoolLink{PoolId: pool.Id, Role: models.PoolHead}
	if err := e.commit(ctx, b); err != nil {
		return nil, err
	}

	e.logger.Info("pool created", "pool_id", pool.Id, "head_id", head.Id)
	return e.GetPool(ctx, pool.Id)
}

// AddPoolMember links the rider registered under email to the pool. Owner only.
func (e *Engine) AddPoolMember(ctx context.Context, poolID, requesterID, email string) (*PoolView, error) {
	target, err := e.store.FindAccountByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	unlock := e.locks.Lock(accountKey(poolID), accountKey(target.Id))
	defer unlock()

	pool, err := e.ownedPool(ctx, poolID, requesterID)
	if err != nil {
		return nil, err
	}
	target, err = e.getRider(ctx, target.Id)
	if err != nil {
		return nil, err
	}
	if target.PoolId != "" {
		return nil, ErrAlreadyInPool
	}

	b := &storage.Batch{}
	b.Account(pool)
	b.Account(target).Pool = &storage.PoolLink{PoolId: pool.Id, Role: models.PoolMember}
	if err := e.commit(ctx, b); err != nil {
		return nil, err
	}

	e.logger.Info("pool member added", "pool_id", pool.Id, "account_id", target.Id)
	return e.GetPool(ctx, pool.Id)
}

// RemovePoolMember unlinks a member. Owner only; the owner cannot remove themselves.
func (e *Engine) RemovePoolMember(ctx context.Context, poolID, requesterID, memberID string) (*PoolView, error) {
	unlock := e.locks.Lock(accountKey(poolID), accountKey(memberID))
	defer unlock()

	pool, err := e.ownedPool(ctx, poolID, requesterID)
	if err != nil {
		return nil, err
	}
	if memberID == pool.HeadId {
		return nil, ErrOwnerCannotBeRemoved
	}
	member, err := e.getRider(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if member.PoolId != pool.Id {
		return nil, ErrNotPoolMember
	}

	b := &storage.Batch{}
	b.Account(pool)
	b.Account(member).Pool = &storage.PoolLink{}
	if err := e.commit(ctx, b); err != nil {
		return nil, err
	}

	e.logger.Info("pool member removed", "pool_id", pool.Id, "account_id", member.Id)
	return e.GetPool(ctx, pool.Id)
}

// RenamePool changes the pool's display name. Owner only.
func (e *Engine) RenamePool(ctx context.Context, poolID, requesterID, name string) (*PoolView, error) {
	name, err := validPoolName(name)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(accountKey(poolID))
	defer unlock()

	pool, err := e.ownedPool(ctx, poolID, requesterID)
	if err != nil {
		return nil, err
	}
	b := &storage.Batch{}
	b.Account(pool).Name = &name
	if err := e.commit(ctx, b); err != nil {
		return nil, err
	}
	return e.GetPool(ctx, pool.Id)
}

// LeavePool unlinks userID from the pool. When the owner leaves the pool is
// dissolved: every member is unlinked, any remaining balance goes back to the
// owner and the pool account is deleted.
func (e *Engine) LeavePool(ctx context.Context, poolID, userID string) error {
	pool, err := e.getPool(ctx, poolID)
	if err != nil {
		return err
	}
	if pool.HeadId != userID {
		return e.leaveAsMember(ctx, poolID, userID)
	}

	members, err := e.store.ListPoolMembers(ctx, poolID)
	if err != nil {
		return fmt.Errorf("failed to list pool members: %w", err)
	}
	keys := []string{accountKey(poolID), accountKey(userID)}
	for _, m := range members {
		keys = append(keys, accountKey(m.Id))
	}
	unlock := e.locks.Lock(keys...)
	defer unlock()

	pool, err = e.ownedPool(ctx, poolID, userID)
	if err != nil {
		return err
	}
	locked := members
	members, err = e.store.ListPoolMembers(ctx, poolID)
	if err != nil {
		return fmt.Errorf("failed to list pool members: %w", err)
	}
	if !sameMembers(locked, members) {
		return fmt.Errorf("pool %s membership changed: %w", poolID, storage.ErrConflict)
	}
	head, err := e.getRider(ctx, userID)
	if err != nil {
		return err
	}

	now := e.now()
	b := &storage.Batch{}
	if pool.Balance > 0 {
		err := stageTransfer(b, pool, head, pool.Balance, models.TxPoolTransfer,
			fmt.Sprintf("Pool %s dissolved — returned to %s", pool.Name, head.Name),
			fmt.Sprintf("Returned from pool %s", pool.Name), pool.Id, now)
		if err != nil {
			return err
		}
	}
	for i := range members {
		m := &members[i]
		if m.Id == head.Id {
			continue
		}
		b.Account(m).Pool = &storage.PoolLink{}
	}
	b.Account(head).Pool = &storage.PoolLink{}
	b.Account(pool).Delete = true
	if err := e.commit(ctx, b); err != nil {
		return err
	}

	e.logger.Info("pool dissolved", "pool_id", pool.Id, "head_id", head.Id, "returned", pool.Balance)
	return nil
}

func (e *Engine) leaveAsMember(ctx context.Context, poolID, userID string) error {
	unlock := e.locks.Lock(accountKey(poolID), accountKey(userID))
	defer unlock()

	pool, err := e.getPool(ctx, poolID)
	if err != nil {
		return err
	}
	member, err := e.getRider(ctx, userID)
	if err != nil {
		return err
	}
	if member.PoolId != pool.Id {
		return ErrNotPoolMember
	}

	b := &storage.Batch{}
	b.Account(pool)
	b.Account(member).Pool = &storage.PoolLink{}
	if err := e.commit(ctx, b); err != nil {
		return err
	}
	e.logger.Info("pool member left", "pool_id", pool.Id, "account_id", member.Id)
	return nil
}

func sameMembers(a, b []models.Account) bool {
	if len(a) != len(b) {
		return false
	}
	ids := func(accts []models.Account) []string {
		out := make([]string, len(accts))
		for i, m := range accts {
			out[i] = m.Id
		}
		sort.Strings(out)
		return out
	}
	x, y := ids(a), ids(b)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// ContributeToPool moves amount from a member's balance into the pool.
func (e *Engine) ContributeToPool(ctx context.Context, poolID, memberID string, amount int64) (*PoolView, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	unlock := e.locks.Lock(accountKey(poolID), accountKey(memberID))
	defer unlock()

	pool, err := e.getPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	member, err := e.getRider(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if member.PoolId != pool.Id {
		return nil, ErrNotPoolMember
	}

	b := &storage.Batch{}
	err = stageTransfer(b, member, pool, amount, models.TxPoolTransfer,
		fmt.Sprintf("Contribution to pool %s", pool.Name),
		fmt.Sprintf("Contribution from %s", member.Name), member.Id, e.now())
	if err != nil {
		return nil, err
	}
	if err := e.commit(ctx, b); err != nil {
		return nil, err
	}

	e.logger.Info("pool contribution", "pool_id", pool.Id, "account_id", member.Id, "amount", amount)
	return e.GetPool(ctx, pool.Id)
}

// AllocateFromPool moves amount from the pool to one of its members. Owner only.
func (e *Engine) AllocateFromPool(ctx context.Context, poolID, requesterID, memberID string, amount int64) (*PoolView, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	unlock := e.locks.Lock(accountKey(poolID), accountKey(memberID))
	defer unlock()

	pool, err := e.ownedPool(ctx, poolID, requesterID)
	if err != nil {
		return nil, err
	}
	member, err := e.getRider(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if member.PoolId != pool.Id {
		return nil, ErrNotPoolMember
	}

	b := &storage.Batch{}
	err = stageTransfer(b, pool, member, amount, models.TxPoolTransfer,
		fmt.Sprintf("Allocated to %s", member.Name),
		fmt.Sprintf("Allocation from pool %s", pool.Name), pool.Id, e.now())
	if err != nil {
		return nil, err
	}
	if err := e.commit(ctx, b); err != nil {
		return nil, err
	}

	e.logger.Info("pool allocation", "pool_id", pool.Id, "account_id", member.Id, "amount", amount)
	return e.GetPool(ctx, pool.Id)
}

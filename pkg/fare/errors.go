package fare

import "errors"

var (
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrSenderNotFound       = errors.New("sender not found")
	ErrRecipientNotFound    = errors.New("recipient not found")
	ErrInvalidRecipient     = errors.New("recipient needs an account, e-mail address or phone number")
	ErrSelfGift             = errors.New("cannot gift a fare to yourself")
	ErrNotRiderAccount      = errors.New("account is not a rider account")
	ErrInvalidPass          = errors.New("pass needs a name, a non-negative price and a positive duration")
	ErrInvalidCard          = errors.New("invalid card details")
	ErrInvalidPayment       = errors.New("payment method must be balance or card")
	ErrTopUpTooSmall        = errors.New("top-up below minimum amount")
	ErrTopUpTooLarge        = errors.New("top-up above maximum amount")
	ErrPoolNotFound         = errors.New("pool not found")
	ErrInvalidPoolName      = errors.New("pool name must be at least 2 characters")
	ErrNotPoolOwner         = errors.New("only the pool owner can do that")
	ErrAlreadyInPool        = errors.New("account is already in a pool")
	ErrNotPoolMember        = errors.New("account is not a member of this pool")
	ErrOwnerCannotBeRemoved = errors.New("the pool owner cannot be removed; leave the pool to dissolve it")
	ErrInvalidAccount       = errors.New("account needs a name, an e-mail address and a known account type")
)

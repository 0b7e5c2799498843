package usecase

import "time"

const (
	// DefaultStorageTimeout bounds one storage transaction so a stuck round-trip
	// cannot hold the account lock forever.
	DefaultStorageTimeout = 10 * time.Second

	// DefaultLockTimeout bounds waiting for the per-matter write lock.
	DefaultLockTimeout = 5 * time.Second

	// DefaultCurrency is used when neither the request nor the config names one.
	DefaultCurrency = "USD"

	// DefaultFirmAccountID is the pooled trust account new matters join by default.
	DefaultFirmAccountID = "iolta-main"

	// SystemActorID attributes audit events raised without a caller.
	SystemActorID = "system"

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour
)

package storage

// Storage defines the root interface for the entire data layer.
// It composes all available storage operations. Components should depend on the
// more granular interfaces (AccountStore, GiftTokenStore, etc.) where they can.
type Storage interface {
	AccountStore
	TransactionReader
	ScanLogReader
	GiftTokenStore
	PassStore
	Committer
}

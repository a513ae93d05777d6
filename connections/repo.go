package connections

// Repo stores connection records keyed by id. Implementations must be safe for
// concurrent use; the Registry serialises writes on top of it.
type Repo interface {
	Upsert(record *Record) error
	Get(id string) (*Record, error)
	Delete(id string) error
	List() ([]*Record, error)
}

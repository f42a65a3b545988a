package template

import (
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"github.com/vilterp/nltemplate/pkg/parse"
)

var templatesBucket = []byte("templates")

// Store persists templates in their textual form in a bolt file, keyed by
// template ID.
type Store struct {
	boltDB  *bolt.DB
	metrics *Metrics
}

func OpenStore(path string, metrics *Metrics) (*Store, error) {
	boltDB, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "opening template store")
	}
	if err := boltDB.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(templatesBucket)
		return err
	}); err != nil {
		boltDB.Close()
		return nil, errors.Wrap(err, "creating templates bucket")
	}
	return &Store{
		boltDB:  boltDB,
		metrics: metrics,
	}, nil
}

// DB exposes the underlying bolt handle, e.g. for row sources in the same file.
func (s *Store) DB() *bolt.DB {
	return s.boltDB
}

func (s *Store) Close() error {
	return s.boltDB.Close()
}

// Put writes t under its ID, replacing an earlier snapshot of it.
func (s *Store) Put(t *Template) error {
	err := s.boltDB.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(templatesBucket).Put([]byte(t.ID()), []byte(t.String()))
	})
	return errors.Wrap(err, "storing template")
}

// Get loads the template stored under id. The result is a fresh, unfrozen
// template with the same ID; opts apply to it as they would to New.
func (s *Store) Get(id string, opts ...Option) (*Template, error) {
	var src string
	if err := s.boltDB.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(templatesBucket).Get([]byte(id))
		if value == nil {
			return &NoSuchTemplateError{TemplateID: id}
		}
		// value is only valid for the life of the transaction
		src = string(value)
		return nil
	}); err != nil {
		return nil, err
	}

	t := New(append([]Option{WithMetrics(s.metrics)}, append(opts, WithID(id))...)...)
	stmts, err := parse.NewParser(t.Factory()).ParseTemplate(src)
	if err != nil {
		return nil, errors.Wrapf(err, "loading template %s", id)
	}
	if err := t.Add(stmts...); err != nil {
		return nil, errors.Wrapf(err, "loading template %s", id)
	}
	return t, nil
}

// List returns stored template IDs in key order.
func (s *Store) List() ([]string, error) {
	var ids []string
	err := s.boltDB.View(func(tx *bolt.Tx) error {
		return tx.Bucket(templatesBucket).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, errors.Wrap(err, "listing templates")
}

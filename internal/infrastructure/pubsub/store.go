package pubsub

import (
	"path/filepath"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	"github.com/timshannon/badgerhold/v4"
)

const subscriptionsDir = "webhooks"

// subscriptionRecord is the persisted form of a Subscription. The secret is
// stored as is since it is needed to sign every notification.
type subscriptionRecord struct {
	ID       string
	Event    string `badgerhold:"index"`
	Endpoint string
	Secret   string
}

func openStore(baseDbDir string) (*badgerhold.Store, error) {
	var dbDir string
	if len(baseDbDir) > 0 {
		dbDir = filepath.Join(baseDbDir, subscriptionsDir)
	}

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = nil
	if len(dbDir) <= 0 {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	return badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}

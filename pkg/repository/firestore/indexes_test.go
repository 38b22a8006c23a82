package firestore_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskregister/pkg/repository/firestore"
)

func TestIndexes(t *testing.T) {
	cfg := firestore.Indexes()

	names := make(map[string]int)
	for _, col := range cfg.Collections {
		names[col.Name] = len(col.Indexes)
		for _, idx := range col.Indexes {
			gt.Array(t, idx.Fields).Length(2)
		}
	}

	for _, name := range []string{"measurements", "alerts", "tolerance_readings", "breaches"} {
		gt.Value(t, names[name]).Equal(1)
	}
}

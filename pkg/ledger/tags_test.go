package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chainlogistics/provenance/pkg/ledger"
)

func TestTagRegistry_SeededWithGovernanceTags(t *testing.T) {
	r := ledger.NewTagRegistry()
	for _, tag := range []string{
		ledger.TagOwnershipTransfer,
		ledger.TagAccessGranted,
		ledger.TagAccessRevoked,
		ledger.TagProductActivated,
		ledger.TagProductDeactivated,
	} {
		assert.True(t, r.Known(tag), tag)
	}
}

func TestTagRegistry_RegisterAndList(t *testing.T) {
	r := ledger.NewTagRegistry()
	r.Register("HARVEST", "Harvested")
	r.Register("QUALITY_CHECK", "Quality checked")

	assert.True(t, r.Known("HARVEST"))
	assert.False(t, r.Known("UNSEEN"))

	list := r.List()
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].Name, list[i].Name, "list is sorted by name")
	}
}

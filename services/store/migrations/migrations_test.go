package migrations

import (
	"io/fs"
	"regexp"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	names, err := fs.Glob(Source(), "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, name := range names {
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected migration file %s", name)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestEmbeddedMigrationsParse(t *testing.T) {
	src, err := iofs.New(Source(), ".")
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	count := 1
	for version := first; ; count++ {
		next, err := src.Next(version)
		if err != nil {
			break
		}
		version = next
	}
	assert.Equal(t, 3, count)
}

func TestSalesSchemaEnforcesInvariants(t *testing.T) {
	data, err := fs.ReadFile(Source(), "000002_sales.up.sql")
	require.NoError(t, err)
	schema := string(data)

	assert.Regexp(t, regexp.MustCompile(`external_transaction_id\s+TEXT\s+UNIQUE`), schema)
	assert.Regexp(t, regexp.MustCompile(`CHECK\s*\(\s*subtotal\s*=\s*quantity\s*\*\s*unit_price\s*\)`), schema)
}

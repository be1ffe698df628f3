package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewImportMetrics(reg)

	m.ObserveRows(3, 1)
	m.ObserveRows(2, 0)
	m.ObserveImport("succeeded", 150*time.Millisecond)
	m.ObserveImport("failed", time.Second)
	m.AddCategoriesCreated(2)

	assert.Equal(t, float64(5), testutil.ToFloat64(m.rows.WithLabelValues(RowImported)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.rows.WithLabelValues(RowSkipped)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.imports.WithLabelValues("failed")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.categoriesCreated))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestImportMetrics_Nil(t *testing.T) {
	var m *ImportMetrics
	assert.NotPanics(t, func() {
		m.ObserveRows(1, 1)
		m.ObserveImport("succeeded", time.Second)
		m.AddCategoriesCreated(1)
	})
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewImportMetrics(reg)
	m.AddCategoriesCreated(4)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "importer_categories_created_total 4"))
}

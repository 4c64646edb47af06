package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	jobmetrics "github.com/procurehub/procurehub/internal/jobs"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertSpec struct {
	Groups []alertGroup `yaml:"groups"`
}

// exportedMetricNames exercises every collector once and returns the family
// names the API and worker expose.
func exportedMetricNames(t *testing.T) []string {
	t.Helper()
	metrics := NewMetrics()
	jobs := jobmetrics.NewMetrics(metrics.Registerer())
	_ = jobs.Track("inventory:reorder-scan").End(errors.New("boom"))
	_ = jobs.Track("inventory:reorder-scan").End(nil)
	jobs.AddItems("inventory:reorder-scan", "indent_lines", 1)
	metrics.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background()))

	families, err := metrics.registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), "procurehub_") {
			names = append(names, mf.GetName())
		}
	}
	return names
}

func TestAlertRules(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "procurehub.yml"))
	require.NoError(t, err)

	var spec alertSpec
	require.NoError(t, yaml.Unmarshal(data, &spec))
	require.Len(t, spec.Groups, 1)
	group := spec.Groups[0]
	require.Equal(t, "procurehub", group.Name)

	expected := map[string]string{
		"HighErrorRate":      "critical",
		"HighLatency":        "warning",
		"JobFailures":        "warning",
		"ReorderScanStalled": "warning",
	}
	require.Len(t, group.Rules, len(expected))

	names := exportedMetricNames(t)
	for _, rule := range group.Rules {
		severity, ok := expected[rule.Alert]
		require.True(t, ok, "unexpected rule %q", rule.Alert)
		require.Equal(t, severity, rule.Labels["severity"], rule.Alert)
		require.NotEmpty(t, rule.For, rule.Alert)
		require.NotEmpty(t, rule.Annotations["summary"], rule.Alert)
		require.NotEmpty(t, rule.Annotations["description"], rule.Alert)
		require.True(t, strings.HasPrefix(rule.Annotations["runbook"], "docs/runbook.md#"), rule.Alert)

		known := false
		for _, name := range names {
			if strings.Contains(rule.Expr, name) {
				known = true
				break
			}
		}
		require.True(t, known, "rule %s queries a metric the service does not export", rule.Alert)
	}
}

package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
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

type alertFile struct {
	Groups []alertGroup `yaml:"groups"`
}

func TestAlertRulesReferenceExportedMetrics(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "delifood.yml"))
	require.NoError(t, err)

	var file alertFile
	require.NoError(t, yaml.Unmarshal(data, &file))
	require.Len(t, file.Groups, 1)
	group := file.Groups[0]
	assert.Equal(t, "delifood", group.Name)

	expected := map[string]struct {
		severity string
		metric   string
	}{
		"HighErrorRate":      {severity: "critical", metric: "delifood_http_requests_total"},
		"EventsDeadLettered": {severity: "warning", metric: "delifood_events_consumed_total"},
		"PublishFailures":    {severity: "warning", metric: "delifood_events_published_total"},
	}
	require.Len(t, group.Rules, len(expected))

	runbook, err := os.ReadFile(filepath.Join("..", "..", "docs", "runbook-events.md"))
	require.NoError(t, err)

	for _, rule := range group.Rules {
		want, ok := expected[rule.Alert]
		require.True(t, ok, "unexpected rule %q", rule.Alert)
		assert.Equal(t, want.severity, rule.Labels["severity"], rule.Alert)
		assert.Contains(t, rule.Expr, want.metric, rule.Alert)
		assert.NotEmpty(t, rule.For, rule.Alert)
		assert.NotEmpty(t, rule.Annotations["summary"], rule.Alert)
		assert.NotEmpty(t, rule.Annotations["description"], rule.Alert)

		anchor, found := strings.CutPrefix(rule.Annotations["runbook"], "docs/runbook-events.md#")
		require.True(t, found, rule.Alert)
		assert.Contains(t, string(runbook), "{#"+anchor+"}", rule.Alert)
	}
}

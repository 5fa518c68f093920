package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xslt"
)

const sheet = `<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
  <xsl:template match="/">
    <out>
      <xsl:for-each select="//item">
        <xsl:value-of select="."/>
      </xsl:for-each>
      <xsl:if test="count(//item) > 2">
        <xsl:message terminate="yes">too many</xsl:message>
      </xsl:if>
    </out>
  </xsl:template>
</xsl:stylesheet>`

func TestCollector(t *testing.T) {
	tests := []struct {
		Name     string
		Input    string
		Counts   map[string]float64
		Failures map[string]float64
		Status   string
	}{
		{
			Name:  "success",
			Input: `<root><item>1</item><item>2</item></root>`,
			Counts: map[string]float64{
				"out":      1,
				"for-each": 1,
				"value-of": 2,
				"if":       1,
				"message":  0,
			},
			Failures: map[string]float64{
				"message": 0,
			},
			Status: StatusOk,
		},
		{
			Name:  "terminate",
			Input: `<root><item>1</item><item>2</item><item>3</item></root>`,
			Counts: map[string]float64{
				"for-each": 1,
				"value-of": 3,
				"message":  1,
			},
			Failures: map[string]float64{
				"message": 1,
				"if":      1,
				"out":     1,
			},
			Status: StatusError,
		},
	}
	for _, c := range tests {
		t.Run(c.Name, func(t *testing.T) {
			var (
				coll = New()
				reg  = prometheus.NewRegistry()
			)
			require.NoError(t, coll.Register(reg))

			style, err := xslt.Parse(strings.NewReader(sheet))
			require.NoError(t, err)
			doc, err := xml.ParseString(c.Input)
			require.NoError(t, err)

			start := time.Now()
			_, err = style.Transform(context.Background(), doc, xslt.WithTracer(coll))
			coll.ObserveTransform("sample", start, err)

			for name, want := range c.Counts {
				got := testutil.ToFloat64(coll.instructions.WithLabelValues(name))
				assert.Equal(t, want, got, name)
			}
			for name, want := range c.Failures {
				got := testutil.ToFloat64(coll.failures.WithLabelValues(name))
				assert.Equal(t, want, got, name)
			}
			got := testutil.ToFloat64(coll.transforms.WithLabelValues("sample", c.Status))
			assert.Equal(t, float64(1), got)
		})
	}
}

func TestCollectorRegister(t *testing.T) {
	var (
		coll = New()
		reg  = prometheus.NewRegistry()
	)
	require.NoError(t, coll.Register(reg))
	assert.Error(t, coll.Register(reg))

	coll.ObserveTransform("sample", time.Now(), nil)
	coll.ObserveTransform("sample", time.Now(), errors.New("failure"))

	count, err := testutil.GatherAndCount(reg, "angle_transform_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(reg, "angle_transforms_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

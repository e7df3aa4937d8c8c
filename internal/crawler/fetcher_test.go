package crawler

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL_StripsFragment(t *testing.T) {
	out, err := NormalizeURL("https://example.com/docs#section-2")

	require.NoError(t, err)
	assert.Equal(t, "https://example.com/docs", out)
}

func TestNormalizeURL_SortsQueryParams(t *testing.T) {
	out, err := NormalizeURL("https://example.com/search?b=2&a=1")

	require.NoError(t, err)
	assert.Equal(t, "https://example.com/search?a=1&b=2", out)
}

func TestNormalizeURL_CollapsesRepeatedSlashes(t *testing.T) {
	out, err := NormalizeURL("https://example.com//docs//page")

	require.NoError(t, err)
	assert.Equal(t, "https://example.com/docs/page", out)
}

func TestNormalizeURL_DropsTrailingSlashUnlessRoot(t *testing.T) {
	out, err := NormalizeURL("https://example.com/docs/")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/docs", out)

	root, err := NormalizeURL("https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/", root)
}

func TestNormalizeURL_RejectsNonHTTPScheme(t *testing.T) {
	_, err := NormalizeURL("ftp://example.com/file")
	assert.Error(t, err)
}

func TestExtractLinks_ResolvesAndDedupesSameOriginLinks(t *testing.T) {
	base, err := url.Parse("https://example.com/docs/index")
	require.NoError(t, err)

	html := `
		<a href="/docs/page1">Page 1</a>
		<a href="page1">Duplicate of page 1, relative</a>
		<a href="https://other.com/page">Cross origin</a>
		<a href="#top">Fragment only</a>
	`

	links := extractLinks(html, base)

	require.Len(t, links, 1)
	assert.Equal(t, "https://example.com/docs/page1", links[0])
}

func TestExtractLinks_NilBaseReturnsNil(t *testing.T) {
	assert.Nil(t, extractLinks("<a href=\"/x\">x</a>", nil))
}

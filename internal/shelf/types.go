package shelf

// CacheEntry is the stored form of an acquired document.
type CacheEntry struct {
	Body      []byte
	Size      int64
	Hash32    uint32
	FetchedAt int64 // unix seconds

	// Via records the transport that satisfied the original fetch:
	// "direct" or "proxy:<name>". Entries fetched through a proxy are
	// still keyed by the canonical URL.
	Via string
}

// Document is one catalog entry, either from the static config or a
// remote catalog refresh.
type Document struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
	URL   string `yaml:"url" json:"url"`
}

// AcquireResult is a successfully acquired payload plus its provenance.
type AcquireResult struct {
	Body []byte

	// Source is "cache", "direct" or "proxy:<name>".
	Source string
}

// ResolveResult is the library-tier result. Substituted is set when the
// requested document could not be acquired and the configured default
// document was served in its place.
type ResolveResult struct {
	AcquireResult
	Substituted bool
}

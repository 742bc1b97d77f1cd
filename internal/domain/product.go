package domain

// Hit is a single nearest-neighbor match. Score is a distance under the
// configured metric: lower means more similar. This polarity holds for L2,
// inner product, and cosine distance alike and must not be inverted.
type Hit struct {
	ID    int64
	Score float64
}

// Ranked is an ordered sequence of hits, ascending by score.
type Ranked []Hit

// Product is a catalog metadata row from the relational store. All textual
// fields are opaque pass-through values owned by the catalog; the join layer
// never validates or transforms them.
type Product struct {
	ID          int64
	Gender      string
	Category    string
	SubCategory string
	ProductType string
	Colour      string
	Usage       string
	Title       string
	Image       string
	ImageURL    string
}

// EnrichedHit joins a hit with its catalog metadata. Rank is the 1-based
// position in the original ranked result, preserved through filtering.
type EnrichedHit struct {
	Product
	Rank  int
	Score float64
}

// Package corpus provides adapters that fetch the precomputed search
// corpus: a JSON array of documents emitted by the site build, with an
// optional embedding per document once an offline embedding pass has run.
package corpus

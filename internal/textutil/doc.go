// Package textutil normalizes video titles for catalog lookups and scores how
// closely a catalog match resembles the title it was found from.
//
// Matching is Unicode-aware: text is NFKC-normalized and case-folded with
// golang.org/x/text before comparison, so "Björk" and "BJÖRK" agree.
package textutil

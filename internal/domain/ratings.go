package domain

import "strconv"

// Product aggregate fields maintained from its reviews.
const (
	FieldRatingsAverage  = "ratingsAverage"
	FieldRatingsQuantity = "ratingsQuantity"
	FieldEachRating      = "eachRating"
)

// RatingSummary is the denormalized review aggregate stored on a product.
type RatingSummary struct {
	Average  float64
	Quantity int64
	// Each counts reviews per score "1".."5".
	Each map[string]int64
}

// Summarize computes the mean, count and per-score distribution of ratings.
// An empty set averages to 0.
func Summarize(ratings []int64) RatingSummary {
	s := RatingSummary{Each: EmptyDistribution()}
	var sum int64
	for _, r := range ratings {
		sum += r
		s.Each[strconv.FormatInt(r, 10)]++
	}
	s.Quantity = int64(len(ratings))
	if s.Quantity > 0 {
		s.Average = float64(sum) / float64(s.Quantity)
	}
	return s
}

// EmptyDistribution returns zero counts for scores 1 to 5.
func EmptyDistribution() map[string]int64 {
	return map[string]int64{"1": 0, "2": 0, "3": 0, "4": 0, "5": 0}
}

// Patch renders the summary as product fields.
func (s RatingSummary) Patch() Document {
	each := make(map[string]any, len(s.Each))
	for k, v := range s.Each {
		each[k] = v
	}
	return Document{
		FieldRatingsAverage:  s.Average,
		FieldRatingsQuantity: s.Quantity,
		FieldEachRating:      each,
	}
}

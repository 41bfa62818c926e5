package tdigest

import "fmt"

// Centroid is a weighted point standing for one or more merged samples.
// Centroids are ordered by Mean only.
type Centroid struct {
	Mean   float64
	Weight float64
}

func (c Centroid) String() string {
	return fmt.Sprintf("C<m=%.6f,w=%.0f>", c.Mean, c.Weight)
}

// IsSingleton reports whether the centroid holds exactly one sample.
func (c Centroid) IsSingleton() bool {
	return c.Weight == 1
}

// mergeCentroids returns the weighted average of a and b. Merging two
// weightless centroids gives the zero centroid.
func mergeCentroids(a, b Centroid) Centroid {
	total := a.Weight + b.Weight
	if total == 0 {
		return Centroid{}
	}
	return Centroid{
		Mean:   a.Mean + (b.Mean-a.Mean)*b.Weight/total,
		Weight: total,
	}
}

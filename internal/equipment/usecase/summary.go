package usecase

import "github.com/rjrahulyadav/ramiyaa-chemical/internal/equipment/entity"

// Summarize averages every measurement over the rows that have it and counts
// rows per equipment type. The Dataset field of the result is left empty.
func Summarize(rows []entity.Equipment) entity.Summary {
	type acc struct {
		sum float64
		n   int
	}

	sums := make(map[entity.Parameter]*acc, 3)
	for _, p := range entity.Parameters() {
		sums[p] = &acc{}
	}

	dist := make(map[string]int)
	for _, row := range rows {
		dist[row.Type]++

		for p, a := range sums {
			if v := row.Value(p); v != nil {
				a.sum += *v
				a.n++
			}
		}
	}

	averages := make(map[entity.Parameter]entity.Mean, len(sums))
	for p, a := range sums {
		m := entity.Mean{Count: a.n}
		if a.n > 0 {
			m.Value = a.sum / float64(a.n)
		}
		averages[p] = m
	}

	return entity.Summary{
		Averages:         averages,
		TypeDistribution: dist,
	}
}

package flaml

import "math"

const speedEps = 1e-10

// SearchThread wraps one searcher of a BlendSearch pool and tracks how fast
// it has been improving per unit of cost. Thread 0 is the cold-start thread
// and has no searcher.
type SearchThread struct {
	id     int
	search *LocalSearch

	costBest  float64
	costBest1 float64
	costBest2 float64
	costLast  float64
	costTotal float64
	objBest1  float64
	objBest2  float64
	speed     float64
}

func newSearchThread(id int, search *LocalSearch) *SearchThread {
	t := &SearchThread{id: id, search: search, objBest1: math.Inf(1), objBest2: math.Inf(1)}
	if search == nil {
		return t
	}
	t.costLast = search.CostIncumbent()
	t.costTotal = t.costLast
	t.costBest = t.costLast
	t.costBest1 = t.costLast
	if obj, ok := search.BestObjective(); ok {
		t.objBest1 = obj
		t.objBest2 = obj
	}
	return t
}

// onTrialComplete forwards a result, already sign-adjusted for
// minimization, to the searcher and updates the speed.
func (t *SearchThread) onTrialComplete(trialID int, metric, cost float64) error {
	if t.search == nil {
		return nil
	}
	if err := t.search.ReceiveTrialResult(trialID, metric, cost); err != nil {
		return err
	}

	t.costLast = cost
	t.costTotal += cost
	if metric < t.objBest1 {
		t.costBest2 = t.costBest1
		t.costBest1 = t.costTotal
		if math.IsInf(t.objBest1, 1) {
			t.objBest2 = metric
		} else {
			t.objBest2 = t.objBest1
		}
		t.objBest1 = metric
		t.costBest = t.costLast
	}

	if t.objBest2 > t.objBest1 {
		t.speed = (t.objBest2 - t.objBest1) / (t.costTotal - t.costBest2 + speedEps)
	} else {
		t.speed = 0
	}
	return nil
}

// ID returns the position of the thread in its pool.
func (t *SearchThread) ID() int { return t.id }

// Speed returns the objective improvement per unit cost between the two
// most recent bests.
func (t *SearchThread) Speed() float64 { return t.speed }

// BestObjective returns the best internal loss the thread has seen.
func (t *SearchThread) BestObjective() float64 { return t.objBest1 }

// CostTotal returns the cost accumulated by the thread.
func (t *SearchThread) CostTotal() float64 { return t.costTotal }

// LocalSearch returns the searcher of the thread, nil for the cold-start
// thread.
func (t *SearchThread) LocalSearch() *LocalSearch { return t.search }

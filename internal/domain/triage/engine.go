package triage

import "strings"

// Evaluate scores answers. A case is urgent when any critical question is
// answered yes or the weighted score reaches UrgentScore.
func Evaluate(a Answers) Result {
	var r Result
	for _, q := range questions {
		if !a[q.Index] {
			continue
		}
		r.Score += q.Weight
		if q.Critical {
			r.Urgent = true
		}
	}
	if r.Score >= UrgentScore {
		r.Urgent = true
	}
	return r
}

// Message is the patient-facing verdict line for r.
func (r Result) Message() string {
	if r.Urgent {
		return messageUrgent
	}
	return messageNotUrgent
}

// Recommend builds self-care advice for a non-urgent case. The emergency
// warning is always the last recommendation.
func Recommend(in RecommendInput) (Recommendation, error) {
	urgent := Evaluate(in.Answers).Urgent
	if in.Urgent != nil {
		urgent = *in.Urgent
	}
	if urgent {
		return Recommendation{}, ErrNotApplicable
	}

	var recs []string
	for _, key := range adviceOrder {
		if in.Answers.Get(key) {
			recs = append(recs, advice[key]...)
		}
	}
	if len(recs) == 0 {
		recs = append(recs, genericAdvice...)
	}
	recs = append(recs, emergencyWarning)

	notes := []string{}
	if in.Pregnant {
		notes = append(notes, notePregnancy)
	}
	if in.Age != nil && *in.Age >= ElderlyAge {
		notes = append(notes, noteElderly)
	}
	if hasWatchedCondition(in.ChronicConditions) {
		notes = append(notes, noteComorbidity)
	}

	return Recommendation{
		Recommendations: dedupe(recs),
		Notes:           dedupe(notes),
	}, nil
}

func hasWatchedCondition(conditions []string) bool {
	for _, c := range conditions {
		c = strings.TrimSpace(c)
		for _, watched := range comorbidityWatchList {
			if strings.EqualFold(c, watched) {
				return true
			}
		}
	}
	return false
}

// dedupe keeps the first occurrence of each string.
func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// ResolveTransport tells an urgent patient what happens next depending on
// whether they can get to an emergency service on their own.
func ResolveTransport(canTravel bool) string {
	if canTravel {
		return transportCanTravel
	}
	return transportDispatch
}

package httpapi

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/freeeve/pgndb/internal/model"
)

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func parseInt64(q url.Values, key string) (*int64, error) {
	s := q.Get(key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, badRequest("%s: %q is not an integer", key, s)
	}
	return &v, nil
}

func parseBool(q url.Values, key string) (bool, error) {
	s := q.Get(key)
	if s == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, badRequest("%s: %q is not a boolean", key, s)
	}
	return v, nil
}

// parseGameQuery reads a GameQuery from URL parameters. Absent parameters
// leave the matching filter unset.
func parseGameQuery(q url.Values) (model.GameQuery, error) {
	var (
		gq  model.GameQuery
		err error
	)

	gq.Player1 = q.Get("player1")
	gq.Player2 = q.Get("player2")

	if gq.SkipCount, err = parseBool(q, "skip_count"); err != nil {
		return gq, err
	}
	if gq.Limit, err = parseInt64(q, "limit"); err != nil {
		return gq, err
	}
	if gq.Offset, err = parseInt64(q, "offset"); err != nil {
		return gq, err
	}

	if s := q.Get("sides"); s != "" {
		v, err := model.ParseSides(s)
		if err != nil {
			return gq, err
		}
		gq.Sides = &v
	}
	if s := q.Get("speed"); s != "" {
		v, err := model.ParseSpeed(s)
		if err != nil {
			return gq, err
		}
		gq.Speed = &v
	}
	if s := q.Get("outcome"); s != "" {
		v, err := model.ParseOutcome(s)
		if err != nil {
			return gq, err
		}
		gq.Outcome = &v
	}
	if s := q.Get("sort"); s != "" {
		v, err := model.ParseSort(s)
		if err != nil {
			return gq, err
		}
		gq.Sort = &v
	}
	for _, p := range []struct {
		key string
		dst **model.RatingRange
	}{{"range1", &gq.Range1}, {"range2", &gq.Range2}} {
		if s := q.Get(p.key); s != "" {
			v, err := model.ParseRatingRange(s)
			if err != nil {
				return gq, err
			}
			*p.dst = &v
		}
	}
	return gq, nil
}

func parsePlayerQuery(q url.Values) (model.PlayerQuery, error) {
	var (
		pq  model.PlayerQuery
		err error
	)
	pq.Name = q.Get("name")
	if pq.SkipCount, err = parseBool(q, "skip_count"); err != nil {
		return pq, err
	}
	if pq.Limit, err = parseInt64(q, "limit"); err != nil {
		return pq, err
	}
	if pq.Offset, err = parseInt64(q, "offset"); err != nil {
		return pq, err
	}
	return pq, nil
}

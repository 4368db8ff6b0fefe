package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	dErrors "mealcard/pkg/domain-errors"
)

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid JSON body")
	}
	return nil
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, badRequest("date is required")
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "date must be YYYY-MM-DD")
	}
	return date, nil
}

func badRequest(message string) error {
	return dErrors.New(dErrors.CodeBadRequest, message)
}

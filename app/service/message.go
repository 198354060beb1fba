package service

import (
	"errors"
	"strings"

	"github.com/vibast-solutions/ms-go-billing-bff/app/apiclient"
)

// MessageFor picks the user-facing text for err: the native error message first,
// then the server-supplied message, then fallback. Only processor causes count as
// native messages; transport and decode causes stay in the logs.
func MessageFor(err error, fallback string) string {
	if err == nil {
		return ""
	}

	apiErr := apiclient.AsError(err)
	if apiErr == nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			return msg
		}
		return fallback
	}

	if apiErr.Cause != nil {
		var nested *apiclient.Error
		if errors.As(apiErr.Cause, &nested) {
			if msg := MessageFor(nested, ""); msg != "" {
				return msg
			}
		} else if apiErr.Kind == apiclient.KindProcessor {
			if msg := strings.TrimSpace(apiErr.Cause.Error()); msg != "" {
				return msg
			}
		}
	}
	if msg := strings.TrimSpace(apiErr.Message); msg != "" {
		return msg
	}
	return fallback
}

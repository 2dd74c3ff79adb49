package tts

import (
	"context"
	"errors"
	"time"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"

	"github.com/voxloom/voxloom/pkg/pipeline"
)

// classify translates a raw synthesis error into the pipeline taxonomy:
//
//   - remote quota exhaustion (429) becomes deferrable, carrying any
//     retry-after the service suggested;
//   - remote internal errors (5xx) become transient, retried in place;
//   - a timed-out call becomes deferrable, because the remote work may
//     still be running and hammering it again immediately helps nobody;
//   - everything else is fatal.
func classify(err error) *pipeline.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return pipeline.DeferWrap(err, 0, "tts call timed out")
	}

	code, retryAfter := remoteStatus(err)
	switch {
	case code == 429:
		return pipeline.DeferWrap(err, retryAfter, "tts rate limited")
	case code >= 500 && code < 600:
		return pipeline.Transient(err, "tts internal error")
	}
	return pipeline.Fatal(err, "tts synthesis failed")
}

// remoteStatus extracts the HTTP status and any suggested retry delay from
// a genai or gax API error.
func remoteStatus(err error) (code int, retryAfter time.Duration) {
	var ae *apierror.APIError
	if errors.As(err, &ae) {
		if ri := ae.Details().RetryInfo; ri != nil {
			retryAfter = ri.GetRetryDelay().AsDuration()
		}
		code = ae.HTTPCode()
		if code > 0 {
			return code, retryAfter
		}
	}
	var ge genai.APIError
	if errors.As(err, &ge) {
		return ge.Code, retryAfter
	}
	var gep *genai.APIError
	if errors.As(err, &gep) {
		return gep.Code, retryAfter
	}
	return 0, retryAfter
}

package bot

import (
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/onnwee/dexkeeper/recorder"
)

// Discord JSON error codes relevant to reading a message.
const (
	codeUnknownChannel     = 10003
	codeUnknownMessage     = 10008
	codeMissingAccess      = 50001
	codeMissingPermissions = 50013
)

// ClassifyFetchError maps a REST failure from reading a message to the reason
// shown to the user.
//
// NotFound: HTTP 404, Unknown Message, Unknown Channel.
// Forbidden: HTTP 403, Missing Access, Missing Permissions.
// Everything else (rate limits, 5xx, transport errors) is Unknown.
func ClassifyFetchError(err error) recorder.UnavailableReason {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return recorder.ReasonUnknown
	}
	if rest.Message != nil {
		switch rest.Message.Code {
		case codeUnknownMessage, codeUnknownChannel:
			return recorder.ReasonNotFound
		case codeMissingAccess, codeMissingPermissions:
			return recorder.ReasonForbidden
		}
	}
	if rest.Response != nil {
		switch rest.Response.StatusCode {
		case http.StatusNotFound:
			return recorder.ReasonNotFound
		case http.StatusForbidden:
			return recorder.ReasonForbidden
		}
	}
	return recorder.ReasonUnknown
}

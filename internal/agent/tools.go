package agent

import (
	"context"
	"encoding/json"

	"machtms/internal/auth"
	apperrors "machtms/internal/errors"
)

// orgFrom pulls the organization scope off the request context. Tools
// never accept an organization parameter; the model cannot cross
// tenants.
func orgFrom(ctx context.Context) (string, error) {
	if org := auth.OrgFromContext(ctx); org != "" {
		return org, nil
	}
	return "", apperrors.New(apperrors.CodeUnauthenticated,
		"no organization on the request context")
}

// toolResult renders a handler's value as the JSON the model reads.
func toolResult(v any) (string, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func decodeArgs(args json.RawMessage, into any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, into); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidArgument, err, "malformed tool arguments")
	}
	return nil
}

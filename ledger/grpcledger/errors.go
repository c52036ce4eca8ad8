package grpcledger

import (
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"xdao.co/sovid/ledger"
	"xdao.co/sovid/model"
)

// mapRPC translates a gRPC status back into the error surface local ledger
// users see: race outcomes become the ledger sentinels, validation
// rejections become coded errors keyed by the taxonomy the server encoded
// into the status.
func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.NotFound:
		return ledger.ErrNotFound
	case codes.Aborted:
		return ledger.ErrSpent
	case codes.AlreadyExists:
		return ledger.ErrConflict
	case codes.PermissionDenied:
		return model.NewError(model.ErrAuthorization, st.Message())
	case codes.OutOfRange:
		return model.NewError(model.ErrValidityRange, st.Message())
	case codes.InvalidArgument:
		return model.NewError(model.ErrSchema, st.Message())
	case codes.Unauthenticated:
		return model.NewError(model.ErrAuthorization, st.Message())
	case codes.FailedPrecondition:
		// The server packs Uniqueness, Nonce and TokenPreservation into
		// FailedPrecondition; the rule-id prefix disambiguates.
		msg := st.Message()
		switch {
		case strings.HasPrefix(msg, "SOVID-NONCE-"):
			return model.NewError(model.ErrNonce, msg)
		case strings.HasPrefix(msg, "SOVID-TOKEN-"):
			return model.NewError(model.ErrTokenPreservation, msg)
		case strings.HasPrefix(msg, "SOVID-MINT-"):
			return model.NewError(model.ErrUniqueness, msg)
		default:
			return model.NewError(model.ErrInvalidRequest, msg)
		}
	default:
		return model.NewError(model.ErrInternal, st.Message())
	}
}

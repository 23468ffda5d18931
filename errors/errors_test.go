package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestHTTPStatus_UnwrapsTaxonomy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", fmt.Errorf("%w: content is empty", ErrValidation), http.StatusBadRequest},
		{"unauthenticated", ErrUnauthenticated, http.StatusUnauthorized},
		{"forbidden", fmt.Errorf("%w: not a member", ErrForbidden), http.StatusForbidden},
		{"not found", fmt.Errorf("thread 3: %w", ErrNotFound), http.StatusNotFound},
		{"conflict", ErrUserAlreadyExists, http.StatusConflict},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestMapToGRPCError(t *testing.T) {
	req := require.New(t)
	req.Nil(MapToGRPCError(nil))

	st, ok := status.FromError(MapToGRPCError(fmt.Errorf("%w: creator", ErrForbidden)))
	req.True(ok)
	req.Equal(codes.PermissionDenied, st.Code())

	st, ok = status.FromError(MapToGRPCError(fmt.Errorf("disk full")))
	req.True(ok)
	req.Equal(codes.Internal, st.Code())
	req.Equal("internal error", st.Message())

	// Status errors are kept as is
	st, ok = status.FromError(MapToGRPCError(status.Error(codes.NotFound, "unknown service")))
	req.True(ok)
	req.Equal(codes.NotFound, st.Code())
}

package calibd

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/models"
)

var errorMappings = []struct {
	err  error
	http int
	grpc codes.Code
}{
	{models.ErrRunIDMissing, http.StatusBadRequest, codes.InvalidArgument},
	{models.ErrRunNotFound, http.StatusNotFound, codes.NotFound},
	{models.ErrSchemeNotFound, http.StatusNotFound, codes.NotFound},
	{ErrRunExists, http.StatusConflict, codes.AlreadyExists},
	{models.ErrRunTerminal, http.StatusConflict, codes.FailedPrecondition},
	{models.ErrInvalidConfiguration, http.StatusBadRequest, codes.InvalidArgument},
	{models.ErrParseFailure, http.StatusBadRequest, codes.InvalidArgument},
	{models.ErrMissingFactor, http.StatusBadRequest, codes.InvalidArgument},
	{models.ErrNonFinite, http.StatusBadRequest, codes.InvalidArgument},
	{models.ErrIndexOutOfRange, http.StatusBadRequest, codes.InvalidArgument},
	{models.ErrNoActivation, http.StatusUnprocessableEntity, codes.FailedPrecondition},
}

func httpStatus(err error) int {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.http
		}
	}
	return http.StatusInternalServerError
}

func grpcCode(err error) codes.Code {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.grpc
		}
	}
	return codes.Internal
}

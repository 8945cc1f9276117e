// Package rpc exposes account and reporting operations as Connect RPCs.
//
// Messages are plain Go structs carried by a JSON codec, so any Connect
// client (or curl with Content-Type: application/json) can call them.
package rpc

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/fiambond/internal/auth"
	"github.com/mmynk/fiambond/internal/service"
	"github.com/mmynk/fiambond/internal/storage"
)

const (
	AuthServiceName   = "fiambond.v1.AuthService"
	ReportServiceName = "fiambond.v1.ReportService"
)

const (
	AuthServiceRegisterProcedure       = "/" + AuthServiceName + "/Register"
	AuthServiceLoginProcedure          = "/" + AuthServiceName + "/Login"
	AuthServiceGetCurrentUserProcedure = "/" + AuthServiceName + "/GetCurrentUser"
	ReportServiceGetReportProcedure    = "/" + ReportServiceName + "/GetReport"
	ReportServiceGetBalanceProcedure   = "/" + ReportServiceName + "/GetBalance"
)

// PublicProcedures can be called without a bearer token.
var PublicProcedures = []string{
	AuthServiceRegisterProcedure,
	AuthServiceLoginProcedure,
}

// WithJSON returns the handler and client option that installs the JSON codec.
func WithJSON() connect.Option {
	return connect.WithCodec(jsonCodec{})
}

// NewAuthServiceHandler builds an HTTP handler for AuthService and returns
// the path to mount it on.
func NewAuthServiceHandler(svc *AuthService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)

	mux := http.NewServeMux()
	mux.Handle(AuthServiceRegisterProcedure, connect.NewUnaryHandler(AuthServiceRegisterProcedure, svc.Register, opts...))
	mux.Handle(AuthServiceLoginProcedure, connect.NewUnaryHandler(AuthServiceLoginProcedure, svc.Login, opts...))
	mux.Handle(AuthServiceGetCurrentUserProcedure, connect.NewUnaryHandler(AuthServiceGetCurrentUserProcedure, svc.GetCurrentUser, opts...))
	return "/" + AuthServiceName + "/", mux
}

// NewReportServiceHandler builds an HTTP handler for ReportService and
// returns the path to mount it on.
func NewReportServiceHandler(svc *ReportService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)

	mux := http.NewServeMux()
	mux.Handle(ReportServiceGetReportProcedure, connect.NewUnaryHandler(ReportServiceGetReportProcedure, svc.GetReport, opts...))
	mux.Handle(ReportServiceGetBalanceProcedure, connect.NewUnaryHandler(ReportServiceGetBalanceProcedure, svc.GetBalance, opts...))
	return "/" + ReportServiceName + "/", mux
}

// connectError maps service and storage errors to Connect codes.
func connectError(err error) error {
	var (
		verr    *service.ValidationError
		connErr *connect.Error
	)

	switch {
	case errors.As(err, &connErr):
		return err
	case errors.As(err, &verr):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, auth.ErrWeakPassword):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, auth.ErrEmailExists):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, auth.ErrInvalidCredentials):
		return connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidCredentials)
	case errors.Is(err, service.ErrForbidden):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, service.ErrInvalidState):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, service.ErrStaleVersion), errors.Is(err, storage.ErrVersionConflict):
		return connect.NewError(connect.CodeAborted, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

package rpc

import (
	"context"

	"connectrpc.com/connect"

	"github.com/mmynk/fiambond/internal/ledger"
	"github.com/mmynk/fiambond/internal/middleware"
	"github.com/mmynk/fiambond/internal/models"
	"github.com/mmynk/fiambond/internal/service"
)

// ReportService implements the ReportService RPC interface.
type ReportService struct {
	reports *service.ReportService
}

// NewReportService creates a new report RPC service.
func NewReportService(reports *service.ReportService) *ReportService {
	return &ReportService{reports: reports}
}

// GetReport aggregates the scope's ledger over the current period.
func (s *ReportService) GetReport(ctx context.Context, req *connect.Request[GetReportRequest]) (*connect.Response[GetReportResponse], error) {
	userID, scope, err := resolve(ctx, req.Msg.ScopeRequest)
	if err != nil {
		return nil, err
	}

	report, err := s.reports.Report(ctx, userID, scope, ledger.ParsePeriod(req.Msg.Period))
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&GetReportResponse{Scope: scope, Report: report}), nil
}

// GetBalance returns the scope's all-time balance.
func (s *ReportService) GetBalance(ctx context.Context, req *connect.Request[GetBalanceRequest]) (*connect.Response[GetBalanceResponse], error) {
	userID, scope, err := resolve(ctx, req.Msg.ScopeRequest)
	if err != nil {
		return nil, err
	}

	balance, err := s.reports.Balance(ctx, userID, scope)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&GetBalanceResponse{Scope: scope, Balance: balance}), nil
}

func resolve(ctx context.Context, req ScopeRequest) (string, models.Scope, error) {
	userID := middleware.GetUserID(ctx)
	scope, err := service.ResolveScope(userID, req.UserID, req.FamilyID, req.CompanyID)
	if err != nil {
		return "", models.Scope{}, connectError(err)
	}
	return userID, scope, nil
}

package api

import (
	"time"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/account"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/ipledger"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/server"
	pkgapi "github.com/burhanmukhtar/Molly-Pro/pkg/api"
)

// ConvertToAPIServer maps a stored server to its API form.
func ConvertToAPIServer(in *server.Server) pkgapi.ServerInfo {
	return pkgapi.ServerInfo{
		ID:          in.ID,
		IP:          in.IP,
		Region:      in.Region,
		Zone:        in.Zone,
		ServerClass: in.Class.String(),
		Status:      string(in.Status),
		CreatedAt:   utc(in.CreatedAt),
		ExpiresAt:   utc(in.ExpiresAt),
		UpdatedAt:   utc(in.UpdatedAt),
	}
}

// ConvertViewToAPIServer maps a server view, reporting the view's status.
func ConvertViewToAPIServer(in server.View) pkgapi.ServerInfo {
	out := ConvertToAPIServer(&in.Server)
	out.Status = string(in.Status)
	out.ProviderState = string(in.ProviderState)
	return out
}

// ConvertToAPIServersList maps the active server views.
func ConvertToAPIServersList(in []server.View) pkgapi.ServersListResponse {
	out := pkgapi.ServersListResponse{Servers: make([]pkgapi.ServerInfo, 0, len(in))}
	for _, v := range in {
		out.Servers = append(out.Servers, ConvertViewToAPIServer(v))
	}
	out.Count = len(out.Servers)
	return out
}

// ConvertToAPIUsedIPs maps the used-address ledger.
func ConvertToAPIUsedIPs(in []*ipledger.UsedIP) pkgapi.UsedIPsResponse {
	out := pkgapi.UsedIPsResponse{IPs: make([]pkgapi.UsedIPInfo, 0, len(in))}
	for _, ip := range in {
		out.IPs = append(out.IPs, pkgapi.UsedIPInfo{
			Address:    ip.Address,
			UserID:     ip.UserID,
			InstanceID: ip.InstanceID,
			AssignedAt: utc(ip.AssignedAt),
			UsageCount: ip.UsageCount,
		})
	}
	out.Count = len(out.IPs)
	return out
}

// ConvertToAPIUser maps an account without its credentials.
func ConvertToAPIUser(in *account.Account) pkgapi.UserInfo {
	return pkgapi.UserInfo{
		ID:        in.ID,
		Username:  in.Username,
		Points:    in.Points,
		Role:      string(in.Role),
		CreatedAt: utc(in.CreatedAt),
	}
}

func utc(t time.Time) time.Time {
	return t.UTC()
}

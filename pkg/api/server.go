package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// (POST /accounts)
	CreateAccount(w http.ResponseWriter, r *http.Request)
	// (GET /accounts/{accountId})
	GetAccount(w http.ResponseWriter, r *http.Request, accountId string)
	// (POST /accounts/{accountId}/topup)
	TopUp(w http.ResponseWriter, r *http.Request, accountId string)
	// (GET /accounts/{accountId}/transactions)
	ListTransactions(w http.ResponseWriter, r *http.Request, accountId string, params ListTransactionsParams)
	// (GET /accounts/{accountId}/passes)
	ListPasses(w http.ResponseWriter, r *http.Request, accountId string)
	// (POST /accounts/{accountId}/passes)
	PurchasePass(w http.ResponseWriter, r *http.Request, accountId string)
	// (POST /scans/nfc)
	TapCard(w http.ResponseWriter, r *http.Request)
	// (POST /scans/qr)
	ScanGuestToken(w http.ResponseWriter, r *http.Request)
	// (POST /gifts)
	CreateGift(w http.ResponseWriter, r *http.Request)
	// (GET /gifts/{tokenId})
	GetGift(w http.ResponseWriter, r *http.Request, tokenId string)
	// (POST /pools)
	CreatePool(w http.ResponseWriter, r *http.Request)
	// (GET /pools/{poolId})
	GetPool(w http.ResponseWriter, r *http.Request, poolId string)
	// (POST /pools/{poolId}/members)
	AddPoolMember(w http.ResponseWriter, r *http.Request, poolId string)
	// (DELETE /pools/{poolId}/members/{memberId})
	RemovePoolMember(w http.ResponseWriter, r *http.Request, poolId string, memberId string, params RemovePoolMemberParams)
	// (POST /pools/{poolId}/rename)
	RenamePool(w http.ResponseWriter, r *http.Request, poolId string)
	// (POST /pools/{poolId}/leave)
	LeavePool(w http.ResponseWriter, r *http.Request, poolId string)
	// (POST /pools/{poolId}/contribute)
	ContributeToPool(w http.ResponseWriter, r *http.Request, poolId string)
	// (POST /pools/{poolId}/allocate)
	AllocateFromPool(w http.ResponseWriter, r *http.Request, poolId string)
}

// MiddlewareFunc wraps a single operation handler.
type MiddlewareFunc func(http.Handler) http.Handler

// ServerInterfaceWrapper converts contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

// InvalidParamFormatError is reported when a path or query parameter does not bind.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, fn http.HandlerFunc) {
	handler := http.Handler(fn)
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}
	handler.ServeHTTP(w, r)
}

func (siw *ServerInterfaceWrapper) pathParam(w http.ResponseWriter, r *http.Request, name string, dest *string) bool {
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), dest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return false
	}
	return true
}

// CreateAccount operation middleware
func (siw *ServerInterfaceWrapper) CreateAccount(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.CreateAccount)
}

// GetAccount operation middleware
func (siw *ServerInterfaceWrapper) GetAccount(w http.ResponseWriter, r *http.Request) {
	var accountId string
	if !siw.pathParam(w, r, "accountId", &accountId) {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetAccount(w, r, accountId)
	})
}

// TopUp operation middleware
func (siw *ServerInterfaceWrapper) TopUp(w http.ResponseWriter, r *http.Request) {
	var accountId string
	if !siw.pathParam(w, r, "accountId", &accountId) {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.TopUp(w, r, accountId)
	})
}

// ListTransactions operation middleware
func (siw *ServerInterfaceWrapper) ListTransactions(w http.ResponseWriter, r *http.Request) {
	var accountId string
	if !siw.pathParam(w, r, "accountId", &accountId) {
		return
	}

	var params ListTransactionsParams
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &params.Limit); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "limit", Err: err})
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListTransactions(w, r, accountId, params)
	})
}

// ListPasses operation middleware
func (siw *ServerInterfaceWrapper) ListPasses(w http.ResponseWriter, r *http.Request) {
	var accountId string
	if !siw.pathParam(w, r, "accountId", &accountId) {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListPasses(w, r, accountId)
	})
}

// PurchasePass operation middleware
func (siw *ServerInterfaceWrapper) PurchasePass(w http.ResponseWriter, r *http.Request) {
	var accountId string
	if !siw.pathParam(w, r, "accountId", &accountId) {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.PurchasePass(w, r, accountId)
	})
}

// TapCard operation middleware
func (siw *ServerInterfaceWrapper) TapCard(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.TapCard)
}

// ScanGuestToken operation middleware
func (siw *ServerInterfaceWrapper) ScanGuestToken(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.ScanGuestToken)
}

// CreateGift operation middleware
func (siw *ServerInterfaceWrapper) CreateGift(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.CreateGift)
}

// GetGift operation middleware
func (siw *ServerInterfaceWrapper) GetGift(w http.ResponseWriter, r *http.Request) {
	var tokenId string
	if !siw.pathParam(w, r, "tokenId", &tokenId) {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetGift(w, r, tokenId)
	})
}

// CreatePool operation middleware
func (siw *ServerInterfaceWrapper) CreatePool(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.CreatePool)
}

// GetPool operation middleware
func (siw *ServerInterfaceWrapper) GetPool(w http.ResponseWriter, r *http.Request) {
	var poolId string
	if !siw.pathParam(w, r, "poolId", &poolId) {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetPool(w, r, poolId)
	})
}

// AddPoolMember operation middleware
func (siw *ServerInterfaceWrapper) AddPoolMember(w http.ResponseWriter, r *http.Request) {
	var poolId string
	if !siw.pathParam(w, r, "poolId", &poolId) {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.AddPoolMember(w, r, poolId)
	})
}

// RemovePoolMember operation middleware
func (siw *ServerInterfaceWrapper) RemovePoolMember(w http.ResponseWriter, r *http.Request) {
	var poolId, memberId string
	if !siw.pathParam(w, r, "poolId", &poolId) || !siw.pathParam(w, r, "memberId", &memberId) {
		return
	}

	var params RemovePoolMemberParams
	if err := runtime.BindQueryParameter("form", true, true, "requester_id", r.URL.Query(), &params.RequesterId); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "requester_id", Err: err})
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.RemovePoolMember(w, r, poolId, memberId, params)
	})
}

// RenamePool operation middleware
func (siw *ServerInterfaceWrapper) RenamePool(w http.ResponseWriter, r *http.Request) {
	var poolId string
	if !siw.pathParam(w, r, "poolId", &poolId) {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.RenamePool(w, r, poolId)
	})
}

// LeavePool operation middleware
func (siw *ServerInterfaceWrapper) LeavePool(w http.ResponseWriter, r *http.Request) {
	var poolId string
	if !siw.pathParam(w, r, "poolId", &poolId) {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.LeavePool(w, r, poolId)
	})
}

// ContributeToPool operation middleware
func (siw *ServerInterfaceWrapper) ContributeToPool(w http.ResponseWriter, r *http.Request) {
	var poolId string
	if !siw.pathParam(w, r, "poolId", &poolId) {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ContributeToPool(w, r, poolId)
	})
}

// AllocateFromPool operation middleware
func (siw *ServerInterfaceWrapper) AllocateFromPool(w http.ResponseWriter, r *http.Request) {
	var poolId string
	if !siw.pathParam(w, r, "poolId", &poolId) {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.AllocateFromPool(w, r, poolId)
	})
}

// ChiServerOptions configures HandlerWithOptions.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// Handler creates http.Handler with routing matching the service's paths.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// HandlerFromMux creates http.Handler with routing mounted on an existing router.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{BaseRouter: r})
}

// HandlerWithOptions creates http.Handler with additional options.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	base := options.BaseURL
	r.Group(func(r chi.Router) {
		r.Post(base+"/accounts", wrapper.CreateAccount)
		r.Get(base+"/accounts/{accountId}", wrapper.GetAccount)
		r.Post(base+"/accounts/{accountId}/topup", wrapper.TopUp)
		r.Get(base+"/accounts/{accountId}/transactions", wrapper.ListTransactions)
		r.Get(base+"/accounts/{accountId}/passes", wrapper.ListPasses)
		r.Post(base+"/accounts/{accountId}/passes", wrapper.PurchasePass)
		r.Post(base+"/scans/nfc", wrapper.TapCard)
		r.Post(base+"/scans/qr", wrapper.ScanGuestToken)
		r.Post(base+"/gifts", wrapper.CreateGift)
		r.Get(base+"/gifts/{tokenId}", wrapper.GetGift)
		r.Post(base+"/pools", wrapper.CreatePool)
		r.Get(base+"/pools/{poolId}", wrapper.GetPool)
		r.Post(base+"/pools/{poolId}/members", wrapper.AddPoolMember)
		r.Delete(base+"/pools/{poolId}/members/{memberId}", wrapper.RemovePoolMember)
		r.Post(base+"/pools/{poolId}/rename", wrapper.RenamePool)
		r.Post(base+"/pools/{poolId}/leave", wrapper.LeavePool)
		r.Post(base+"/pools/{poolId}/contribute", wrapper.ContributeToPool)
		r.Post(base+"/pools/{poolId}/allocate", wrapper.AllocateFromPool)
	})

	return r
}

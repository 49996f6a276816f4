package webhooks

import (
	"io"
	"net/http"

	"github.com/h2hthailand/h2h-backend/api/responses"
	paypalwebhook "github.com/h2hthailand/h2h-backend/internal/webhooks/paypal"
	pkgerrors "github.com/h2hthailand/h2h-backend/pkg/errors"
	"github.com/h2hthailand/h2h-backend/pkg/logger"
)

// PayPalWebhook receives provider payment events. Every outcome the handler
// can absorb is acked with 200 so the provider stops redelivering.
func PayPalWebhook(svc paypalwebhook.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		result, err := svc.HandleEvent(ctx, r.Header, payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

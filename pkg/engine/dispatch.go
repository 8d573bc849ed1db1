package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/carbonmock/carbon/internal/script"
	"github.com/carbonmock/carbon/pkg/httputil"
	"github.com/carbonmock/carbon/pkg/mock"
	"github.com/carbonmock/carbon/pkg/proxy"
	"github.com/google/uuid"
)

// dispatch writes the response for the selected provider. Service and
// provider latency are waited out before every branch except scenario,
// proxy included.
func (h *Handler) dispatch(ctx context.Context, w http.ResponseWriter, entry *CachedEntry, cp *CompiledProvider, req *mock.MockRequest) {
	p := cp.Config.Provider
	if p == nil {
		httputil.WriteError(w, http.StatusInternalServerError, "Provider has no response configuration")
		return
	}
	if _, ok := p.(*mock.ScenarioProvider); ok {
		httputil.WriteError(w, http.StatusNotImplemented, MsgScenarioNotImplemented)
		return
	}

	delay := time.Duration(entry.Service.InjectLatencyMs+p.LatencyMs()) * time.Millisecond
	if !sleep(ctx, delay) {
		return
	}

	switch p := p.(type) {
	case *mock.StaticProvider:
		h.writeStatic(w, p)
	case *mock.ScriptProvider:
		h.writeScript(ctx, w, cp, p, req)
	case *mock.TemplateProvider:
		h.writeTemplate(w, cp, p, req)
	case *mock.ProxyProvider:
		h.writeProxy(ctx, w, cp, p, req)
	}
}

// sleep waits for d, returning false if ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// writeHead writes the configured headers and status. A status outside
// 100-999 is answered with a 500 envelope instead and false is returned.
func writeHead(w http.ResponseWriter, base *mock.ResponseBase) bool {
	status := base.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	if !httputil.ValidStatusCode(status) {
		httputil.WriteErrorWithDetails(w, http.StatusInternalServerError, MsgInvalidStatus,
			fmt.Sprintf("status code %d is outside 100-999", status))
		return false
	}
	for name, value := range base.Headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(status)
	return true
}

func (h *Handler) writeStatic(w http.ResponseWriter, p *mock.StaticProvider) {
	if len(p.MultipartParts) == 0 {
		if writeHead(w, &p.ResponseBase) {
			_, _ = w.Write([]byte(p.Body))
		}
		return
	}

	boundary := "carbon-" + strings.ReplaceAll(uuid.NewString(), "-", "")
	var b strings.Builder
	for _, part := range p.MultipartParts {
		b.WriteString("--" + boundary + "\r\n")
		if part.ContentType != "" {
			b.WriteString("Content-Type: " + part.ContentType + "\r\n")
		}
		b.WriteString("\r\n")
		b.WriteString(part.Body)
		b.WriteString("\r\n")
	}
	b.WriteString("--" + boundary + "--\r\n")

	base := p.ResponseBase
	base.Headers = make(map[string]string, len(p.Headers)+1)
	for name, value := range p.Headers {
		if !strings.EqualFold(name, "Content-Type") {
			base.Headers[name] = value
		}
	}
	base.Headers["Content-Type"] = "multipart/mixed; boundary=" + boundary
	if writeHead(w, &base) {
		_, _ = w.Write([]byte(b.String()))
	}
}

func (h *Handler) writeScript(ctx context.Context, w http.ResponseWriter, cp *CompiledProvider, p *mock.ScriptProvider, req *mock.MockRequest) {
	if cp.Script == nil {
		httputil.WriteErrorWithDetails(w, http.StatusInternalServerError, MsgScriptCompileFailed, errorDetails(cp.ScriptErr))
		return
	}
	result, err := cp.Script.Invoke(ctx, req.Value())
	if err != nil {
		h.log.Debug("script failed", "provider", cp.Name(), "error", err)
		httputil.WriteErrorWithDetails(w, http.StatusInternalServerError, MsgScriptExecutionFailed, err.Error())
		return
	}

	var body string
	if s, ok := result.(string); ok {
		body = s
	} else {
		body, err = script.EncodeJSON(result)
		if err != nil {
			httputil.WriteErrorWithDetails(w, http.StatusInternalServerError, MsgScriptExecutionFailed, err.Error())
			return
		}
		if _, set := headerValue(p.Headers, "Content-Type"); !set {
			w.Header().Set("Content-Type", "application/json")
		}
	}
	if writeHead(w, &p.ResponseBase) {
		_, _ = w.Write([]byte(body))
	}
}

func (h *Handler) writeTemplate(w http.ResponseWriter, cp *CompiledProvider, p *mock.TemplateProvider, req *mock.MockRequest) {
	if cp.Template == nil {
		httputil.WriteErrorWithDetails(w, http.StatusInternalServerError, MsgTemplateFailed, errorDetails(cp.TemplateErr))
		return
	}
	out, err := cp.Template.Render(req.Value())
	if err != nil {
		httputil.WriteErrorWithDetails(w, http.StatusInternalServerError, MsgTemplateFailed, err.Error())
		return
	}
	if writeHead(w, &p.ResponseBase) {
		_, _ = w.Write([]byte(out))
	}
}

func (h *Handler) writeProxy(ctx context.Context, w http.ResponseWriter, cp *CompiledProvider, p *mock.ProxyProvider, req *mock.MockRequest) {
	if cp.RequestBuilderErr != nil {
		httputil.WriteErrorWithDetails(w, http.StatusInternalServerError, MsgRequestBuilderFailed, cp.RequestBuilderErr.Error())
		return
	}
	if cp.ResponseBuilderErr != nil {
		httputil.WriteErrorWithDetails(w, http.StatusInternalServerError, MsgResponseBuilderFailed, cp.ResponseBuilderErr.Error())
		return
	}

	resp, err := h.forwarder.Forward(ctx, req, proxy.Target{
		URL:             p.TargetURL,
		RequestBuilder:  cp.RequestBuilder,
		ResponseBuilder: cp.ResponseBuilder,
	})
	if err == nil {
		resp.WriteTo(w)
		return
	}

	details := err.Error()
	var perr *proxy.Error
	if errors.As(err, &perr) {
		details = perr.Err.Error()
	}
	h.log.Debug("proxy failed", "provider", cp.Name(), "target", p.TargetURL, "error", err)

	switch {
	case errors.Is(err, proxy.ErrRequestBuilder):
		httputil.WriteErrorWithDetails(w, http.StatusInternalServerError, MsgRequestBuilderFailed, details)
	case errors.Is(err, proxy.ErrResponseBuilder):
		httputil.WriteErrorWithDetails(w, http.StatusInternalServerError, MsgResponseBuilderFailed, details)
	default:
		httputil.WriteErrorWithDetails(w, http.StatusBadGateway, MsgProxyFailed, details)
	}
}

func errorDetails(err error) string {
	if err == nil {
		return "The script could not be compiled"
	}
	return err.Error()
}

// headerValue looks up name in a configured header map, ignoring case.
func headerValue(headers map[string]string, name string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

package restserver

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/motorwatch/internal/log"
	"github.com/chrissnell/motorwatch/internal/monitor"
	"github.com/chrissnell/motorwatch/internal/pipeline"
	"github.com/chrissnell/motorwatch/internal/storage"
	"github.com/chrissnell/motorwatch/internal/synth"
	"github.com/chrissnell/motorwatch/internal/types"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
	defaultRequestLimit = 100
	journalBackend      = "journal"
)

// statusFor maps pipeline errors to HTTP statuses: bad input is the
// client's fault, a failed classifier is an upstream failure
func statusFor(err error) int {
	var (
		formatErr  *types.FormatError
		missingErr *types.ChannelNotFoundError
		shapeErr   *types.ShapeError
		scoringErr *types.ScoringError
	)
	switch {
	case errors.As(err, &formatErr), errors.As(err, &missingErr), errors.As(err, &shapeErr):
		return http.StatusBadRequest
	case errors.As(err, &scoringErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (c *Controller) handlePredict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(c.restConfig.MaxUploadMB)<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.formatter.WriteError(w, r, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("File exceeds the %d MB upload limit", c.restConfig.MaxUploadMB))
			return
		}
		c.formatter.WriteError(w, r, http.StatusBadRequest, "No file provided")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		c.formatter.WriteError(w, r, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		c.formatter.WriteError(w, r, http.StatusBadRequest, "No file selected")
		return
	}
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".mat") {
		c.formatter.WriteError(w, r, http.StatusBadRequest, "Only .mat files are supported")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		c.formatter.WriteError(w, r, http.StatusBadRequest, fmt.Sprintf("could not read upload: %v", err))
		return
	}

	name := storage.UploadName(time.Now(), header.Filename)
	if _, err := c.deps.Uploads.Put(name, data); err != nil {
		c.logger.Errorf("could not save upload %s: %v", header.Filename, err)
		c.formatter.WriteError(w, r, http.StatusInternalServerError, "could not save upload")
		return
	}
	c.logger.Infof("received and saved file %s as %s (%d bytes)", header.Filename, name, len(data))

	report, err := c.deps.Predictor.Predict(r.Context(), data, pipeline.WithSource(storage.SourceUpload, name))
	if err != nil {
		c.logger.Warnf("prediction failed for %s: %v", name, err)
		c.formatter.WriteError(w, r, statusFor(err), fmt.Sprintf("Prediction failed: %v", err))
		return
	}

	c.formatter.WriteResponse(w, r, http.StatusOK, report)
}

func (c *Controller) handleGenerate(w http.ResponseWriter, r *http.Request) {
	faultName := r.URL.Query().Get("fault")
	if faultName == "" {
		faultName = string(synth.FaultNone)
	}
	fault, err := synth.ParseFaultType(faultName)
	if err != nil {
		c.formatter.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	out, err := c.deps.Producer.Produce(fault)
	if err != nil {
		c.logger.Errorf("could not generate %s recording: %v", fault, err)
		c.formatter.WriteError(w, r, http.StatusInternalServerError, fmt.Sprintf("generation failed: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/x-matlab-data")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Ref.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Data)))
	w.Header().Set("X-Fault-Type", string(fault))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out.Data); err != nil {
		c.logger.Warnf("could not send %s: %v", out.Ref.Name, err)
	}
}

func (c *Controller) handleStartMonitoring(w http.ResponseWriter, r *http.Request) {
	if err := c.deps.Session.Start(); err != nil {
		if errors.Is(err, monitor.ErrAlreadyRunning) {
			c.formatter.WriteResponse(w, r, http.StatusBadRequest, StatusResponse{Status: "already_running"})
			return
		}
		c.formatter.WriteError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	c.logger.Info("monitoring started")
	c.formatter.WriteResponse(w, r, http.StatusOK, StatusResponse{Status: "started"})
}

func (c *Controller) handleStopMonitoring(w http.ResponseWriter, r *http.Request) {
	c.deps.Session.Stop()
	c.logger.Info("monitoring stopped")
	c.formatter.WriteResponse(w, r, http.StatusOK, StatusResponse{Status: "stopped"})
}

// latestGenerated prefers the session pointer and falls back to the newest
// file in the generated store
func (c *Controller) latestGenerated() (monitor.FileRef, bool, error) {
	if ref, ok := c.deps.Session.Latest(); ok {
		return ref, true, nil
	}
	info, err := c.deps.Generated.Latest(".mat")
	if errors.Is(err, storage.ErrNoBlobs) {
		return monitor.FileRef{}, false, nil
	}
	if err != nil {
		return monitor.FileRef{}, false, err
	}
	return monitor.FileRef{Name: info.Name, Time: info.ModTime}, true, nil
}

func (c *Controller) handleMonitoringStatus(w http.ResponseWriter, r *http.Request) {
	if !c.deps.Session.Running() {
		c.formatter.WriteResponse(w, r, http.StatusOK, MonitoringStatus{Status: monitorStopped})
		return
	}

	ref, ok, err := c.latestGenerated()
	if err != nil {
		c.logger.Errorf("could not list generated recordings: %v", err)
		c.formatter.WriteResponse(w, r, http.StatusInternalServerError, MonitoringStatus{Status: "error", Error: err.Error()})
		return
	}
	if !ok {
		c.formatter.WriteResponse(w, r, http.StatusOK, MonitoringStatus{Status: monitorWaiting, Message: "Waiting for signal files..."})
		return
	}

	c.logger.Debugf("processing file %s", ref.Name)
	report, err := c.deps.Predictor.PredictFile(r.Context(), c.deps.Generated.Path(ref.Name), pipeline.WithSource(storage.SourceMonitor, ref.Name))
	if err != nil {
		c.logger.Errorf("error in monitoring status for %s: %v", ref.Name, err)
		c.formatter.WriteResponse(w, r, statusFor(err), MonitoringStatus{Status: "error", File: ref.Name, Error: err.Error()})
		return
	}
	c.deps.Session.MarkProcessed(ref)

	ts := float64(ref.Time.UnixNano()) / 1e9
	c.formatter.WriteResponse(w, r, http.StatusOK, MonitoringStatus{
		Status:    monitorRunning,
		Timestamp: &ts,
		File:      ref.Name,
		Prediction: &MonitoredPrediction{
			State:      report.Label,
			Confidence: report.Confidence,
			Details: PredictionDetails{
				ClassProbabilities: report.ClassProbabilities,
				ValidationPatterns: report.Pattern,
				Overridden:         report.Overridden,
				Reason:             report.Reason,
			},
		},
		Signals: report.Signals,
		Metrics: &report.Metrics,
	})
}

// queryLimit parses a positive ?limit= style parameter
func queryLimit(r *http.Request, key string, def, maxLimit int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return min(n, maxLimit), nil
}

func (c *Controller) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, "limit", defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		c.formatter.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := c.deps.Journal.Recent(r.Context(), limit)
	if err != nil {
		c.logger.Errorf("could not read prediction history: %v", err)
		c.formatter.WriteError(w, r, http.StatusInternalServerError, "could not read prediction history")
		return
	}
	if entries == nil {
		entries = []storage.Entry{}
	}
	c.formatter.WriteResponse(w, r, http.StatusOK, HistoryResponse{Count: len(entries), Entries: entries})
}

func (c *Controller) handleHealth(w http.ResponseWriter, r *http.Request) {
	c.deps.Health.CheckJournal(r.Context(), journalBackend, c.deps.Journal)

	resp := HealthResponse{
		Status:     "ok",
		Monitoring: c.deps.Session.Running(),
		Backends:   c.deps.Health.GetAllHealth(),
	}
	status := http.StatusOK
	for _, h := range resp.Backends {
		if h.Status != storage.StatusHealthy {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	c.formatter.WriteResponse(w, r, status, resp)
}

func (c *Controller) handleRecentRequests(w http.ResponseWriter, r *http.Request) {
	n, err := queryLimit(r, "n", defaultRequestLimit, 1000)
	if err != nil {
		c.formatter.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c.formatter.WriteResponse(w, r, http.StatusOK, log.GetHTTPLogBuffer().Recent(n))
}

package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/mangrovewatch/mangrove/internal/database/service"
	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/mangrovewatch/mangrove/internal/rest/convert"
	"github.com/mangrovewatch/mangrove/internal/rest/middleware/auth"
	"github.com/mangrovewatch/mangrove/internal/rest/response"
	restTypes "github.com/mangrovewatch/mangrove/internal/rest/types"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// SubmissionHandler handles the report and upload endpoints.
// One handler serves one submission kind.
type SubmissionHandler struct {
	submissions SubmissionService
	kind        enum.SubmissionKind
	logger      *zap.Logger
}

// NewSubmissionHandler creates a handler for the given submission kind.
func NewSubmissionHandler(
	submissions SubmissionService, kind enum.SubmissionKind, logger *zap.Logger,
) *SubmissionHandler {
	return &SubmissionHandler{
		submissions: submissions,
		kind:        kind,
		logger:      logger.Named(string(kind) + "_handler"),
	}
}

// Create files a new report or upload and queues it for analysis.
// POST /v1/reports, POST /v1/uploads
func (h *SubmissionHandler) Create(w http.ResponseWriter, req bunrouter.Request) error {
	user := auth.UserFromContext(req.Context())

	var (
		sub *types.Submission
		err error
	)

	switch h.kind {
	case enum.SubmissionKindReport:
		var in types.NewReport
		if err := decodeJSON(w, req, &in); err != nil {
			return response.Fail(w, h.logger, err)
		}
		sub, err = h.submissions.CreateReport(req.Context(), user, &in)
	default:
		var in types.NewUpload
		if err := decodeJSON(w, req, &in); err != nil {
			return response.Fail(w, h.logger, err)
		}
		sub, err = h.submissions.CreateUpload(req.Context(), user, &in)
	}
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	return response.JSON(w, http.StatusCreated, convert.Submission(sub))
}

// List returns a filtered page of submissions of this kind.
// GET /v1/reports, GET /v1/uploads
func (h *SubmissionHandler) List(w http.ResponseWriter, req bunrouter.Request) error {
	filter, err := submissionFilter(req)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}
	filter.Kind = h.kind

	return listSubmissions(w, req, h.submissions, filter, h.logger)
}

// Get returns one submission.
// GET /v1/reports/:id, GET /v1/uploads/:id
func (h *SubmissionHandler) Get(w http.ResponseWriter, req bunrouter.Request) error {
	id, err := pathID(req)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	sub, err := h.submissions.GetOfKind(req.Context(), id, h.kind)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	return response.JSON(w, http.StatusOK, convert.Submission(sub))
}

// Update edits a submission the caller owns while it is still in its initial state.
// PUT /v1/reports/:id, PUT /v1/uploads/:id
func (h *SubmissionHandler) Update(w http.ResponseWriter, req bunrouter.Request) error {
	id, err := pathID(req)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	var edit types.SubmissionEdit
	if err := decodeJSON(w, req, &edit); err != nil {
		return response.Fail(w, h.logger, err)
	}

	sub, err := h.submissions.Update(req.Context(), auth.UserFromContext(req.Context()), id, h.kind, &edit)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	return response.JSON(w, http.StatusOK, convert.Submission(sub))
}

// Delete removes a submission the caller owns while it is still in its initial state.
// DELETE /v1/reports/:id, DELETE /v1/uploads/:id
func (h *SubmissionHandler) Delete(w http.ResponseWriter, req bunrouter.Request) error {
	id, err := pathID(req)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	if err := h.submissions.Delete(req.Context(), auth.UserFromContext(req.Context()), id, h.kind); err != nil {
		return response.Fail(w, h.logger, err)
	}

	return response.Message(w, http.StatusOK, "deleted")
}

// GetAnalysis returns the AI analysis of an upload to its owner or an admin.
// GET /v1/uploads/:id/ai-analysis
func (h *SubmissionHandler) GetAnalysis(w http.ResponseWriter, req bunrouter.Request) error {
	id, err := pathID(req)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	sub, err := h.submissions.GetAnalysis(req.Context(), auth.UserFromContext(req.Context()), id)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	return response.JSON(w, http.StatusOK, convert.Analysis(sub))
}

// Flag reports an upload for review.
// POST /v1/uploads/:id/flag
func (h *SubmissionHandler) Flag(w http.ResponseWriter, req bunrouter.Request) error {
	id, err := pathID(req)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	var body restTypes.FlagRequest
	if err := decodeJSON(w, req, &body); err != nil {
		return response.Fail(w, h.logger, err)
	}

	sub, err := h.submissions.Flag(req.Context(), auth.UserFromContext(req.Context()), id, body.Reason, body.Notes)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	return response.JSON(w, http.StatusOK, convert.Submission(sub))
}

// GetMap returns report markers, optionally inside a bounding box.
// GET /v1/map?minLat=&minLng=&maxLat=&maxLng=
func (h *SubmissionHandler) GetMap(w http.ResponseWriter, req bunrouter.Request) error {
	box, err := boundingBox(req)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	points, err := h.submissions.GetMapPoints(req.Context(), box)
	if err != nil {
		return response.Fail(w, h.logger, err)
	}

	return response.JSON(w, http.StatusOK, points)
}

// boundingBox returns nil when no bounds are given. Partial bounds are rejected.
func boundingBox(req bunrouter.Request) (*types.BoundingBox, error) {
	names := []string{"minLat", "minLng", "maxLat", "maxLng"}
	query := req.URL.Query()

	present := 0
	for _, name := range names {
		if query.Has(name) {
			present++
		}
	}

	switch present {
	case 0:
		return nil, nil //nolint:nilnil // no bounds means the whole map
	case len(names):
	default:
		return nil, fmt.Errorf("%w: bounding box needs minLat, minLng, maxLat and maxLng", types.ErrValidation)
	}

	values := make([]float64, len(names))
	for i, name := range names {
		value, err := queryFloat(req, name)
		if err != nil {
			return nil, err
		}
		values[i] = value
	}

	return &types.BoundingBox{MinLat: values[0], MinLng: values[1], MaxLat: values[2], MaxLng: values[3]}, nil
}

// submissionFilter reads the listing filters shared by the public and admin listings.
func submissionFilter(req bunrouter.Request) (types.SubmissionFilter, error) {
	query := req.URL.Query()

	filter := types.SubmissionFilter{
		Kind:     enum.SubmissionKind(query.Get("kind")),
		Status:   enum.SubmissionStatus(query.Get("status")),
		Category: enum.Category(query.Get("category")),
	}

	if raw := query.Get("userId"); raw != "" {
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("%w: invalid userId %q", response.ErrBadRequest, raw)
		}
		filter.UserID = userID
	}

	page, limit, err := pagination(req)
	if err != nil {
		return filter, err
	}
	filter.Page, filter.Limit = service.NormalizePage(page, limit)

	return filter, nil
}

func listSubmissions(
	w http.ResponseWriter, req bunrouter.Request, submissions SubmissionService,
	filter types.SubmissionFilter, logger *zap.Logger,
) error {
	subs, total, err := submissions.List(req.Context(), filter)
	if err != nil {
		return response.Fail(w, logger, err)
	}

	return response.JSON(w, http.StatusOK, convert.Submissions(subs, total, filter.Page, filter.Limit))
}

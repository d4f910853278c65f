package inbound

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/rjrahulyadav/ramiyaa-chemical/internal/equipment/entity"
	"github.com/rjrahulyadav/ramiyaa-chemical/internal/equipment/usecase"
	"github.com/rjrahulyadav/ramiyaa-chemical/internal/pkg/pkgerror"
	"github.com/rjrahulyadav/ramiyaa-chemical/internal/pkg/pkgrouter"
)

const maxNameBytes = 255

type HTTPEndpoint struct {
	uc             uc
	maxUploadBytes int64
}

func (h *HTTPEndpoint) Upload(ctx context.Context, r *http.Request) (any, error) {
	form, err := readUploadForm(r, h.maxUploadBytes)
	if err != nil {
		return nil, err
	}

	in := usecase.UploadInput{
		Name:       form.name,
		FileName:   form.fileName,
		UploadedBy: pkgrouter.GetUsername(ctx),
	}
	if form.hasFile {
		in.Body = bytes.NewReader(form.content)
	}

	result, err := h.uc.Upload(ctx, in)
	if err != nil {
		return nil, err
	}

	resp := UploadResponse{
		Dataset:   toHTTPDataset(result.Dataset),
		Equipment: make([]Equipment, 0, len(result.Equipment)),
	}
	for _, row := range result.Equipment {
		resp.Equipment = append(resp.Equipment, toHTTPEquipment(row))
	}

	return resp, nil
}

func (h *HTTPEndpoint) Datasets(ctx context.Context, r *http.Request) (any, error) {
	datasets, err := h.uc.Datasets(ctx)
	if err != nil {
		return nil, err
	}

	resp := make(DatasetListResponse, 0, len(datasets))
	for _, ds := range datasets {
		resp = append(resp, toHTTPDataset(ds))
	}

	return resp, nil
}

func (h *HTTPEndpoint) Summary(ctx context.Context, r *http.Request) (any, error) {
	id, err := datasetID(ctx)
	if err != nil {
		return nil, err
	}

	summary, err := h.uc.Summary(ctx, id)
	if err != nil {
		return nil, err
	}

	return toHTTPSummary(summary), nil
}

func (h *HTTPEndpoint) Equipment(ctx context.Context, r *http.Request) (any, error) {
	id, err := datasetID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := h.uc.Equipment(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := make(EquipmentListResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, toHTTPEquipment(row))
	}

	return resp, nil
}

func (h *HTTPEndpoint) Report(ctx context.Context, r *http.Request) (any, error) {
	id, err := datasetID(ctx)
	if err != nil {
		return nil, err
	}

	report, err := h.uc.Report(ctx, id)
	if err != nil {
		return nil, err
	}

	return PDFResponse{filename: report.Filename, content: report.Content}, nil
}

// datasetID reads the :id path parameter. Anything that is not a positive
// integer cannot name a dataset, so it is reported as not found.
func datasetID(ctx context.Context) (int64, error) {
	id, ok := pkgrouter.GetParamInt64(ctx, "id")
	if !ok {
		return 0, pkgerror.NewNotFound("dataset not found")
	}

	return id, nil
}

type uploadForm struct {
	name     string
	fileName string
	hasFile  bool
	content  []byte
}

func readUploadForm(r *http.Request, limit int64) (uploadForm, error) {
	var form uploadForm

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.EqualFold(mediaType, "multipart/form-data") {
		return form, pkgerror.NewInvalidInput(errors.New("no file provided"))
	}

	r.Body = http.MaxBytesReader(nil, r.Body, limit)

	reader, err := r.MultipartReader()
	if err != nil {
		return form, pkgerror.NewInvalidFormat("malformed multipart body")
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return form, uploadReadErr(err, limit)
		}

		switch part.FormName() {
		case "file":
			if form.hasFile {
				break
			}
			content, err := io.ReadAll(part)
			if err != nil {
				_ = part.Close()
				return form, uploadReadErr(err, limit)
			}
			form.hasFile = true
			form.fileName = part.FileName()
			form.content = content
		case "name":
			value, err := io.ReadAll(io.LimitReader(part, maxNameBytes+1))
			if err != nil {
				_ = part.Close()
				return form, uploadReadErr(err, limit)
			}
			if len(value) > maxNameBytes {
				_ = part.Close()
				return form, pkgerror.NewInvalidInput(fmt.Errorf("name must be at most %d bytes", maxNameBytes))
			}
			form.name = string(value)
		}
		_ = part.Close()
	}

	return form, nil
}

func uploadReadErr(err error, limit int64) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return pkgerror.NewInvalidInput(fmt.Errorf("file exceeds the %d byte upload limit", limit))
	}
	return pkgerror.NewInvalidFormat("malformed multipart body")
}

func toHTTPDataset(ds entity.Dataset) Dataset {
	return Dataset{
		ID:         ds.ID,
		Name:       ds.Name,
		UploadedAt: ds.UploadedAt,
		TotalCount: ds.TotalCount,
		FileName:   ds.FileName,
	}
}

func toHTTPEquipment(row entity.Equipment) Equipment {
	return Equipment{
		ID:          row.ID,
		Name:        row.Name,
		Type:        row.Type,
		Flowrate:    row.Flowrate,
		Pressure:    row.Pressure,
		Temperature: row.Temperature,
	}
}

func toHTTPSummary(s entity.Summary) SummaryResponse {
	resp := SummaryResponse{
		DatasetID:        s.Dataset.ID,
		DatasetName:      s.Dataset.Name,
		TotalCount:       s.Dataset.TotalCount,
		UploadedAt:       s.Dataset.UploadedAt,
		Averages:         make(map[string]float64, 3),
		Samples:          make(map[string]int, 3),
		TypeDistribution: s.TypeDistribution,
	}
	if resp.TypeDistribution == nil {
		resp.TypeDistribution = map[string]int{}
	}

	for _, p := range entity.Parameters() {
		m := s.Averages[p]
		resp.Averages[string(p)] = m.Value
		resp.Samples[string(p)] = m.Count
	}

	return resp
}

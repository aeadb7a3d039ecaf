package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"photohunter/middleware"
	"photohunter/models"
	"photohunter/services"
	"photohunter/utils/errors"
)

const (
	maxUploadBytes = 10 << 20
	dtoPartName    = "locationCreationDto"
	filePartName   = "file"
)

type LocationHandler struct {
	locationService *services.LocationService
	userService     *services.UserService
}

func NewLocationHandler(locationService *services.LocationService, userService *services.UserService) *LocationHandler {
	return &LocationHandler{locationService: locationService, userService: userService}
}

func invalidInput(details string) error {
	return errors.NewAPIError(errors.ErrInvalidInput.Code, errors.ErrInvalidInput.Message, errors.ErrInvalidInput.Status, details)
}

// parseGeoQuery reads the optional lat/lng pair. Both or neither must be
// present.
func parseGeoQuery(r *http.Request) (*models.GeoQuery, error) {
	q := r.URL.Query()
	latStr, lngStr := q.Get("lat"), q.Get("lng")
	if latStr == "" && lngStr == "" {
		return nil, nil
	}
	if latStr == "" || lngStr == "" {
		return nil, invalidInput("lat and lng must be given together")
	}
	lat, err := parseCoordinate("lat", latStr)
	if err != nil {
		return nil, err
	}
	lng, err := parseCoordinate("lng", lngStr)
	if err != nil {
		return nil, err
	}
	return &models.GeoQuery{Lat: lat, Lng: lng}, nil
}

// parseCoordinate accepts finite numbers only; ParseFloat alone lets
// "NaN" and "Inf" through.
func parseCoordinate(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, invalidInput(fmt.Sprintf("bad %s %q", name, raw))
	}
	return v, nil
}

func (h *LocationHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	query, err := parseGeoQuery(r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	viewer, err := requestUser(r, h.userService)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	locations, err := h.locationService.List(r.Context(), viewer, query)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, locations)
}

func (h *LocationHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	viewer, err := requestUser(r, h.userService)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	location, err := h.locationService.Get(r.Context(), viewer, mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, location)
}

// CreateLocation accepts a JSON body, or a multipart form carrying the
// location either as a JSON part or as plain fields, plus an optional image.
func (h *LocationHandler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	owner, err := requestUser(r, h.userService)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	var (
		dto    models.LocationCreationDto
		upload *services.Upload
	)
	mediaType, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := decodeJSON(r, &dto); err != nil {
			middleware.WriteError(w, err)
			return
		}
	} else {
		form, err := readMultipart(w, r, mediaType, params)
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		defer form.RemoveAll()

		if dto, err = locationFromForm(form); err != nil {
			middleware.WriteError(w, err)
			return
		}
		if files := form.File[filePartName]; len(files) > 0 {
			file, err := files[0].Open()
			if err != nil {
				middleware.WriteError(w, invalidInput(err.Error()))
				return
			}
			defer file.Close()
			if upload, err = imageUpload(file, files[0]); err != nil {
				middleware.WriteError(w, err)
				return
			}
		}
	}

	location, err := h.locationService.Create(r.Context(), owner, dto, upload)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, location)
}

// readMultipart parses multipart/form-data as well as multipart/mixed
// bodies, whose parts carry form-data dispositions.
func readMultipart(w http.ResponseWriter, r *http.Request, mediaType string, params map[string]string) (*multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, invalidInput(err.Error())
		}
		return r.MultipartForm, nil
	case "multipart/mixed":
		boundary := params["boundary"]
		if boundary == "" {
			return nil, invalidInput("multipart body without boundary")
		}
		form, err := multipart.NewReader(r.Body, boundary).ReadForm(maxUploadBytes)
		if err != nil {
			return nil, invalidInput(err.Error())
		}
		return form, nil
	}
	return nil, invalidInput(fmt.Sprintf("unsupported content type %q", mediaType))
}

func locationFromForm(form *multipart.Form) (models.LocationCreationDto, error) {
	var dto models.LocationCreationDto

	if values := form.Value[dtoPartName]; len(values) > 0 {
		if err := json.Unmarshal([]byte(values[0]), &dto); err != nil {
			return dto, invalidInput(err.Error())
		}
		return dto, nil
	}
	if files := form.File[dtoPartName]; len(files) > 0 {
		f, err := files[0].Open()
		if err != nil {
			return dto, invalidInput(err.Error())
		}
		defer f.Close()
		if err := json.NewDecoder(f).Decode(&dto); err != nil {
			return dto, invalidInput(err.Error())
		}
		return dto, nil
	}

	field := func(name string) string {
		if v := form.Value[name]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	dto.Title = field("title")
	dto.Description = field("description")
	for name, dst := range map[string]*float64{"lat": &dto.Lat, "lng": &dto.Lng} {
		v, err := parseCoordinate(name, field(name))
		if err != nil {
			return dto, err
		}
		*dst = v
	}
	return dto, nil
}

// imageUpload sniffs the file and rejects anything that is not an image.
func imageUpload(file multipart.File, header *multipart.FileHeader) (*services.Upload, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, invalidInput(err.Error())
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, errors.Validation(fmt.Sprintf("file must be an image, got %s", contentType))
	}
	return &services.Upload{
		Filename:    header.Filename,
		ContentType: contentType,
		Body:        io.MultiReader(bytes.NewReader(head), file),
	}, nil
}

package echoapi

import (
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/skedutech/portal/core"
	"github.com/skedutech/portal/core/franchise"
)

const queryDateFormat = "2006-01-02"

type franchiseApi struct {
	svc      franchise.Service
	storage  core.FileStorage
	logger   core.Logger
	validate *validator.Validate
}

func registerFranchiseAPI(g *echo.Group, deps ServerDeps) {
	api := franchiseApi{
		svc:      deps.FranchiseSvc,
		storage:  deps.Storage,
		logger:   deps.Logger,
		validate: deps.Validate,
	}

	fg := g.Group("/franchises")
	fg.POST("", api.create)
	fg.GET("", api.query)
	fg.GET("/requests", api.queryRequests)

	// detail endpoints
	dg := fg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.PATCH("/manage", api.manage)
	dg.POST("/resend-credentials", api.resendCredentials)
}

// Handlers

func (api *franchiseApi) create(ctx echo.Context) error {
	var data franchise.NewFranchise
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFranchise")
	}
	if err := api.attachUploads(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	f, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating franchise")
	}

	return ctx.JSON(http.StatusCreated, f)
}

func (api *franchiseApi) query(ctx echo.Context) error {
	filter, err := bindQueryFilter(ctx)
	if err != nil {
		return err
	}

	// the bare list is the catalogue of live franchises
	if filter.IsEmpty() {
		fs, err := api.svc.QueryLive(ctx.Request().Context())
		if err != nil {
			return errors.Wrap(err, "querying live franchises")
		}
		return ctx.JSON(http.StatusOK, fs)
	}

	fs, err := api.svc.Query(ctx.Request().Context(), filter, nil)
	if err != nil {
		return errors.Wrap(err, "querying franchises")
	}
	return ctx.JSON(http.StatusOK, fs)
}

func (api *franchiseApi) queryRequests(ctx echo.Context) error {
	fs, err := api.svc.QueryRequests(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying franchise requests")
	}
	return ctx.JSON(http.StatusOK, fs)
}

func (api *franchiseApi) retrieve(ctx echo.Context) error {
	f, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *franchiseApi) update(ctx echo.Context) error {
	orig, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}

	var data franchise.UpdateFranchise
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateFranchise")
	}
	if err = data.Validate(ctx.Request().Context(), orig, api.validate, api.svc); err != nil {
		return err
	}

	f, err := api.svc.Update(ctx.Request().Context(), orig.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating franchise")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *franchiseApi) manage(ctx echo.Context) error {
	var data franchise.ManageFranchise
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ManageFranchise")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	f, err := api.svc.Manage(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "managing franchise")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *franchiseApi) resendCredentials(ctx echo.Context) error {
	f, err := api.svc.ResendCredentials(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *franchiseApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// attachUploads pushes multipart documents to the blob store and records the
// handles on the payload. Missing files are fine; the fields are optional.
func (api *franchiseApi) attachUploads(ctx echo.Context, data *franchise.NewFranchise) error {
	save := func(field string) (*core.StoredFile, error) {
		fh, err := ctx.FormFile(field)
		if err != nil {
			return nil, nil // not a multipart request or field absent
		}
		sf, err := api.saveUpload(ctx, fh)
		if err != nil {
			return nil, errors.Wrap(err, "storing "+field)
		}
		return &sf, nil
	}

	photo, err := save("ownerPhoto")
	if err != nil {
		return err
	}
	data.OwnerPhoto = photo

	sig, err := save("signature")
	if err != nil {
		return err
	}
	data.Signature = sig
	return nil
}

func (api *franchiseApi) saveUpload(ctx echo.Context, fh *multipart.FileHeader) (core.StoredFile, error) {
	src, err := fh.Open()
	if err != nil {
		return core.StoredFile{}, err
	}
	defer func() { _ = src.Close() }()

	return api.storage.Save(ctx.Request().Context(), fh.Filename, fh.Header.Get("Content-Type"), src)
}

func bindQueryFilter(ctx echo.Context) (*franchise.QueryFilter, error) {
	filter := &franchise.QueryFilter{
		Search:             ctx.QueryParam("search"),
		Status:             franchise.Status(ctx.QueryParam("status")),
		VerificationStatus: franchise.VerificationStatus(ctx.QueryParam("verificationStatus")),
		ApplicationType:    franchise.ApplicationType(ctx.QueryParam("applicationType")),
	}

	parseDate := func(field string) (time.Time, error) {
		val := ctx.QueryParam(field)
		if val == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(queryDateFormat, val)
		if err != nil {
			return time.Time{}, core.NewValidationError(nil, core.FieldError{
				Field: field, Error: "must be a valid date (YYYY-MM-DD)",
			})
		}
		return t.UTC(), nil
	}

	from, err := parseDate("requestedFrom")
	if err != nil {
		return nil, err
	}
	filter.RequestedFrom = from

	to, err := parseDate("requestedTo")
	if err != nil {
		return nil, err
	}
	filter.RequestedTo = to

	filter.Clean()
	return filter, nil
}

package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/moffa90/go-fwflash/firmware"
	"github.com/moffa90/go-fwflash/flasher"
	"github.com/moffa90/go-fwflash/manifest"
	"github.com/moffa90/go-fwflash/session"
)

const (
	sessionsPath = "/sessions"
	sessionPath  = sessionsPath + "/:id"
	idParam      = "id"
	nameParam    = "name"
)

func setRoutes(e *gin.Engine, s *Server) {
	for _, route := range []func(*Server) (string, string, gin.HandlerFunc){
		postSessionH,
		getSessionH,
		deleteSessionH,
		putMetadataH,
		postFilesH,
		deleteFileH,
		putAddressH,
		deleteAddressH,
		postConnectH,
		postDisconnectH,
		getValidationH,
		postDownloadH,
		postFlashH,
		getFlashH,
		deleteFlashH,
	} {
		method, path, h := route(s)
		e.Handle(method, path, h)
	}
	e.GET("/health", func(gc *gin.Context) { gc.Status(http.StatusOK) })
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func postSessionH(s *Server) (string, string, gin.HandlerFunc) {
	return http.MethodPost, sessionsPath, func(gc *gin.Context) {
		sess, err := s.newSession()
		if err != nil {
			_ = gc.Error(err)
			return
		}
		gc.JSON(http.StatusCreated, gin.H{"id": sess.ID})
	}
}

func getSessionH(s *Server) (string, string, gin.HandlerFunc) {
	return http.MethodGet, sessionPath, func(gc *gin.Context) {
		e, err := s.lookup(gc.Param(idParam))
		if err != nil {
			_ = gc.Error(err)
			return
		}
		v := sessionView{
			ID:       e.sess.ID,
			Parts:    make([]partView, 0),
			Metadata: newMetadataView(e.sess.Metadata()),
			Device:   newDeviceView(e.sess.Device()),
		}
		for _, p := range e.sess.Parts() {
			v.Parts = append(v.Parts, newPartView(p))
		}
		e.mu.Lock()
		if e.job != nil {
			v.Flash = e.job.view()
		}
		e.mu.Unlock()
		gc.JSON(http.StatusOK, v)
	}
}

func deleteSessionH(s *Server) (string, string, gin.HandlerFunc) {
	return http.MethodDelete, sessionPath, func(gc *gin.Context) {
		if err := s.remove(gc.Param(idParam)); err != nil {
			_ = gc.Error(err)
			return
		}
		gc.Status(http.StatusNoContent)
	}
}

// putMetadataH accepts either metadata document shape as the raw body.
func putMetadataH(s *Server) (string, string, gin.HandlerFunc) {
	return http.MethodPut, sessionPath + "/metadata", func(gc *gin.Context) {
		e, err := s.lookup(gc.Param(idParam))
		if err != nil {
			_ = gc.Error(err)
			return
		}
		data, err := io.ReadAll(io.LimitReader(gc.Request.Body, 1<<20))
		if err != nil {
			_ = gc.Error(invalidInput(err))
			return
		}
		meta, err := e.sess.LoadMetadata(data)
		if err != nil {
			_ = gc.Error(err)
			return
		}
		gc.JSON(http.StatusOK, newMetadataView(meta))
	}
}

// postFilesH adds every uploaded "file" field. Intel HEX uploads may
// yield more than one part.
func postFilesH(s *Server) (string, string, gin.HandlerFunc) {
	return http.MethodPost, sessionPath + "/files", func(gc *gin.Context) {
		e, err := s.lookup(gc.Param(idParam))
		if err != nil {
			_ = gc.Error(err)
			return
		}
		form, err := gc.MultipartForm()
		if err != nil {
			_ = gc.Error(invalidInput(err))
			return
		}
		files := form.File["file"]
		if len(files) == 0 {
			_ = gc.Error(invalidInput(errors.New("no file uploaded")))
			return
		}

		var added []partView
		for _, fh := range files {
			if fh.Size > s.cfg.MaxUploadSize {
				_ = gc.Error(invalidInput(fmt.Errorf("%s exceeds the upload limit", fh.Filename)))
				return
			}
			f, err := fh.Open()
			if err != nil {
				_ = gc.Error(err)
				return
			}
			parts, err := firmware.LoadReader(fh.Filename, f)
			_ = f.Close()
			if err != nil {
				_ = gc.Error(invalidInput(err))
				return
			}
			e.sess.AddParts(parts...)
			for _, p := range parts {
				added = append(added, newPartView(p))
			}
		}
		gc.JSON(http.StatusCreated, added)
	}
}

func deleteFileH(s *Server) (string, string, gin.HandlerFunc) {
	return http.MethodDelete, sessionPath + "/files/:" + nameParam, func(gc *gin.Context) {
		e, err := s.lookup(gc.Param(idParam))
		if err != nil {
			_ = gc.Error(err)
			return
		}
		name := gc.Param(nameParam)
		if !e.sess.RemovePart(name) {
			_ = gc.Error(&NotFoundError{What: "part", ID: name})
			return
		}
		gc.Status(http.StatusNoContent)
	}
}

type addressRequest struct {
	Address string `json:"address" binding:"required"`
}

// putAddressH records an operator-entered address, hex or decimal.
func putAddressH(s *Server) (string, string, gin.HandlerFunc) {
	return http.MethodPut, sessionPath + "/addresses/:" + nameParam, func(gc *gin.Context) {
		e, err := s.lookup(gc.Param(idParam))
		if err != nil {
			_ = gc.Error(err)
			return
		}
		var req addressRequest
		if err := gc.ShouldBindJSON(&req); err != nil {
			_ = gc.Error(invalidInput(err))
			return
		}
		addr, err := manifest.ParseAddress(req.Address)
		if err != nil {
			_ = gc.Error(invalidInput(err))
			return
		}
		e.sess.SetAddress(gc.Param(nameParam), addr)
		gc.JSON(http.StatusOK, newValidationView(e.sess.Assess()))
	}
}

func deleteAddressH(s *Server) (string, string, gin.HandlerFunc) {
	return http.MethodDelete, sessionPath + "/addresses/:" + nameParam, func(gc *gin.Context) {
		e, err := s.lookup(gc.Param(idParam))
		if err != nil {
			_ = gc.Error(err)
			return
		}
		e.sess.ClearAddress(gc.Param(nameParam))
		gc.Status(http.StatusNoContent)
	}
}

func postConnectH(s *Server) (string, string, gin.HandlerFunc) {
	return http.MethodPost, sessionPath + "/connect", func(gc *gin.Context) {
		e, err := s.lookup(gc.Param(idParam))
		if err != nil {
			_ = gc.Error(err)
			return
		}
		info, err := e.sess.Connect(gc.Request.Context())
		if err != nil {
			_ = gc.Error(err)
			return
		}
		gc.JSON(http.StatusOK, newDeviceView(info))
	}
}

func postDisconnectH(s *Server) (string, string, gin.HandlerFunc) {
	return http.MethodPost, sessionPath + "/disconnect", func(gc *gin.Context) {
		e, err := s.lookup(gc.Param(idParam))
		if err != nil {
			_ = gc.Error(err)
			return
		}
		if err := e.sess.Disconnect(); err != nil {
			_ = gc.Error(err)
			return
		}
		gc.Status(http.StatusNoContent)
	}
}

func getValidationH(s *Server) (string, string, gin.HandlerFunc) {
	return http.MethodGet, sessionPath + "/validation", func(gc *gin.Context) {
		e, err := s.lookup(gc.Param(idParam))
		if err != nil {
			_ = gc.Error(err)
			return
		}
		gc.JSON(http.StatusOK, newValidationView(e.sess.Assess()))
	}
}

// postDownloadH fetches every manifest part. The request blocks until the
// set is complete; a partial failure leaves the session parts unchanged.
func postDownloadH(s *Server) (string, string, gin.HandlerFunc) {
	return http.MethodPost, sessionPath + "/download", func(gc *gin.Context) {
		e, err := s.lookup(gc.Param(idParam))
		if err != nil {
			_ = gc.Error(err)
			return
		}
		results, err := e.sess.DownloadManifestParts(gc.Request.Context(), nil)
		if err != nil {
			_ = gc.Error(err)
			return
		}
		gc.JSON(http.StatusOK, newDownloadResultViews(results))
	}
}

type flashRequest struct {
	Erase                   *bool `json:"erase"`
	BaudRate                int   `json:"baud_rate"`
	AcknowledgeChipMismatch bool  `json:"acknowledge_chip_mismatch"`
}

// postFlashH validates the selection and starts a background flash job.
func postFlashH(s *Server) (string, string, gin.HandlerFunc) {
	return http.MethodPost, sessionPath + "/flash", func(gc *gin.Context) {
		e, err := s.lookup(gc.Param(idParam))
		if err != nil {
			_ = gc.Error(err)
			return
		}
		var req flashRequest
		if gc.Request.ContentLength != 0 {
			if err := gc.ShouldBindJSON(&req); err != nil {
				_ = gc.Error(invalidInput(err))
				return
			}
		}
		opts := session.FlashOptions{
			EraseBeforeFlash:        s.cfg.EraseBeforeFlash,
			BaudRate:                req.BaudRate,
			AcknowledgeChipMismatch: req.AcknowledgeChipMismatch,
		}
		if req.Erase != nil {
			opts.EraseBeforeFlash = *req.Erase
		}

		e.mu.Lock()
		defer e.mu.Unlock()
		if e.job != nil && e.job.running() {
			_ = gc.Error(flasher.ErrBusy)
			return
		}
		if e.sess.Device() == nil {
			_ = gc.Error(session.ErrNotConnected)
			return
		}
		if _, err := e.sess.PrepareBatch(opts); err != nil {
			_ = gc.Error(err)
			return
		}

		id := e.sess.ID
		e.job = startFlashJob(e.sess, opts, func(j *flashJob) {
			v := j.view()
			if v.Error != "" {
				s.log.Error("Flash job failed", "session", id, "job", v.ID, "error", v.Error)
				return
			}
			s.log.Info("Flash job completed", "session", id, "job", v.ID, "batch", v.BatchID)
		})
		gc.JSON(http.StatusAccepted, e.job.view())
	}
}

func getFlashH(s *Server) (string, string, gin.HandlerFunc) {
	return http.MethodGet, sessionPath + "/flash", func(gc *gin.Context) {
		e, err := s.lookup(gc.Param(idParam))
		if err != nil {
			_ = gc.Error(err)
			return
		}
		e.mu.Lock()
		job := e.job
		e.mu.Unlock()
		if job == nil {
			_ = gc.Error(&NotFoundError{What: "flash job", ID: e.sess.ID})
			return
		}
		if gc.Query("wait") == "true" {
			if err := job.wait(gc.Request.Context()); err != nil {
				_ = gc.Error(err)
				return
			}
		}
		gc.JSON(http.StatusOK, job.view())
	}
}

// deleteFlashH cancels the running job. Writes stop after the current part.
func deleteFlashH(s *Server) (string, string, gin.HandlerFunc) {
	return http.MethodDelete, sessionPath + "/flash", func(gc *gin.Context) {
		e, err := s.lookup(gc.Param(idParam))
		if err != nil {
			_ = gc.Error(err)
			return
		}
		e.mu.Lock()
		job := e.job
		e.mu.Unlock()
		if job == nil || !job.running() {
			_ = gc.Error(&NotFoundError{What: "running flash job", ID: e.sess.ID})
			return
		}
		job.cancel()
		gc.Status(http.StatusAccepted)
	}
}

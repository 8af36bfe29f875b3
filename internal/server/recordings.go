package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/switchboard/internal/authorization"
	recordingdomain "github.com/smallbiznis/switchboard/internal/recording/domain"
	obslogger "github.com/smallbiznis/switchboard/internal/observability/logger"
	"go.uber.org/zap"
)

func (s *Server) ListRecordings(c *gin.Context) {
	orgID, err := s.orgScope(c, authorization.ObjectRecording, authorization.ActionRecordingView)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	assigned := false
	if orgID != nil {
		if assigned, err = s.assignedOnly(c, *orgID); err != nil {
			AbortWithError(c, err)
			return
		}
	}

	recordings, err := s.recordingSvc.List(c.Request.Context(), recordingdomain.ListRequest{
		OrgID:               orgID,
		Limit:               queryLimit(c, 50, 200),
		AssignedNumbersOnly: assigned,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recordings": nonNil(recordings)})
}

// DownloadRecording proxies the audio from the recording host.
func (s *Server) DownloadRecording(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	ctx := c.Request.Context()

	rec, err := s.recordingSvc.Get(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	orgID := rec.OrgID
	if err := s.authorize(c, &orgID, authorization.ObjectRecording, authorization.ActionRecordingView); err != nil {
		AbortWithError(c, err)
		return
	}

	dl, err := s.recordingSvc.Open(ctx, rec)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer func() {
		if cerr := dl.Body.Close(); cerr != nil {
			obslogger.WithContext(ctx, s.log).Debug("recording body close failed", zap.Error(cerr))
		}
	}()

	c.DataFromReader(http.StatusOK, dl.ContentLength, dl.ContentType, dl.Body, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", dl.FileName),
	})
}

package station

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/grovetools/watchpost/bus"
	"github.com/grovetools/watchpost/command"
	"github.com/grovetools/watchpost/config"
	"github.com/grovetools/watchpost/errors"
	"github.com/grovetools/watchpost/view"
)

const uploadErrorPrefix = "Upload error: "

// uploadProfile stages the image in a private temp file, hands its path to
// the backend and removes it before the result is reported.
func (s *Station) uploadProfile(from view.Name, payload json.RawMessage) {
	var req bus.UploadRequest
	if err := bus.Decode(bus.UploadProfile, payload, &req); err != nil {
		s.send(from, bus.UploadResult, bus.Failed(errors.Message(err)))
		return
	}
	if err := command.Validate(command.ArgFileName, req.FileName); err != nil {
		s.send(from, bus.UploadResult, bus.Failed(errors.Message(err)))
		return
	}
	userData, err := json.Marshal(req.UserData)
	if err != nil {
		s.send(from, bus.UploadResult, bus.Failed(uploadErrorPrefix+err.Error()))
		return
	}

	tempPath, err := writeTempImage(s.tempDir, req.FileName, req.FileBuffer)
	if err != nil {
		s.logger.WithError(err).Error("Failed to stage upload")
		s.send(from, bus.UploadResult, bus.Failed(uploadErrorPrefix+err.Error()))
		return
	}
	s.logger.WithField("path", tempPath).Debug("Staged profile image")

	future := s.runner.Go(s.views.Context(from), config.CommandUploadProfile, string(userData), tempPath)
	future.Then(func(o command.Outcome) {
		s.removeTemp(tempPath)
		s.post(func() { s.reply(from, bus.UploadResult, o) })
	})
}

// writeTempImage writes data to dir/temp_<unixnano>_<uuid><ext> readable
// only by the station user.
func writeTempImage(dir, fileName string, data []byte) (string, error) {
	name := fmt.Sprintf("temp_%d_%s%s", time.Now().UnixNano(), uuid.NewString(), filepath.Ext(fileName))
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (s *Station) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.WithError(errors.CleanupFailed(path, err)).Warn("Failed to remove staged upload")
	}
}

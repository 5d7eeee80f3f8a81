/*
Copyright © 2023 the xsprofile authors.
This file is part of xsprofile.

xsprofile is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

xsprofile is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with xsprofile.  If not, see <http://www.gnu.org/licenses/>.
*/

package xsprofileutil

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/xsprofile"
	"github.com/spatialmodel/xsprofile/planar"
	"github.com/spf13/cobra"
)

// Run creates a cross-sectional profile.
//
// CobraCommand is the cobra.Command instance where Run is called from.
// Log messages are printed to its output. It may be nil.
//
// LogFile is the path to the desired logfile location. It can be a
// blob storage location.
//
// WhiskerFile and ReferenceFile are the paths to the whisker and
// reference feature files. They can be local paths, URLs, or blob
// storage locations, and can be shapefiles or GeoJSON files.
//
// OutputFile is the path to the desired output location. It can be a
// blob storage location. The output format is chosen by the file
// extension.
//
// cfg holds the profile settings; its Log field is replaced by a
// logger writing to LogFile.
//
// WhiskerIDField is the whisker attribute holding the whisker IDs. If it
// is empty, record numbers are used.
//
// If Overwrite is false, it is an error for OutputFile to already exist.
// If Verbose is true, progress of each stage is logged.
func Run(CobraCommand *cobra.Command, LogFile, WhiskerFile, ReferenceFile, OutputFile string,
	cfg xsprofile.Config, WhiskerIDField string, Overwrite, Verbose bool) error {

	startTime := time.Now()
	ctx := context.Background()
	if CobraCommand != nil && CobraCommand.Context() != nil {
		ctx = CobraCommand.Context()
	}

	var logUpload uploader
	defer logUpload.cleanup()
	logfile, err := os.Create(logUpload.maybeUpload(LogFile))
	if err != nil {
		return errors.Wrap(err, "xsprofile: problem creating log file")
	}

	var out io.Writer = os.Stdout
	if CobraCommand != nil {
		out = CobraCommand.OutOrStdout()
	}
	log := logrus.New()
	log.SetOutput(io.MultiWriter(out, logfile))
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	if Verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	cfg.Log = log

	log.Infof("xsprofile v%s", xsprofile.Version)
	runErr := profile(ctx, log, WhiskerFile, ReferenceFile, OutputFile, cfg, WhiskerIDField, Overwrite)
	if runErr != nil {
		log.WithError(runErr).Error("profile failed")
	} else {
		log.WithField("elapsed", time.Since(startTime).Round(time.Millisecond)).Info("xsprofile completed successfully")
	}

	if err := logfile.Close(); err != nil && runErr == nil {
		runErr = errors.Wrap(err, "xsprofile: closing log file")
	}
	if err := logUpload.upload(ctx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func profile(ctx context.Context, log logrus.FieldLogger, whiskerFile, referenceFile, outputFile string,
	cfg xsprofile.Config, whiskerIDField string, overwrite bool) error {

	var download downloader
	defer download.cleanup()
	whiskerFile, err := download.maybeDownload(ctx, whiskerFile, log)
	if err != nil {
		return err
	}
	referenceFile, err = download.maybeDownload(ctx, referenceFile, log)
	if err != nil {
		return err
	}

	whiskers, sr, err := xsprofile.ReadWhiskers(whiskerFile, whiskerIDField)
	if err != nil {
		return err
	}
	refs, schema, err := xsprofile.ReadReferences(referenceFile, sr)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"whiskers":   humanize.Comma(int64(len(whiskers))),
		"references": humanize.Comma(int64(len(refs))),
	}).Info("read inputs")

	var upload uploader
	defer upload.cleanup()
	localOutput := upload.maybeUpload(outputFile)
	if upload.err != nil {
		return errors.Wrap(upload.err, "xsprofile: preparing output upload")
	}
	o, err := xsprofile.NewOutputter(localOutput, overwrite, sr, schema)
	if err != nil {
		return err
	}

	p, err := xsprofile.New(cfg, planar.New(), whiskers, refs, o.Output(), upload.uploadOutput())
	if err != nil {
		return err
	}
	if err := p.Execute(ctx); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"points": humanize.Comma(int64(len(p.Results()))),
		"digest": p.Digest(),
	}).Infof("wrote %s", outputFile)
	return nil
}

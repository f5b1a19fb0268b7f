// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package log is the leveled stderr logger used by every package in this
// module. Level names and priority prefixes line up with domain.LogLevel
// (DEBUG/INFO/NOTICE/WARNING/ERROR), the same five levels the cluster log
// stream and the browser's log viewer understand, so a line printed here
// and a domain.LogEntry row read back from the store agree on vocabulary.
// Time/date are omitted by default because systemd adds them;
// SetLogDateTime(true) adds them anyway.
//
// Prefixes follow the syslog priority convention systemd understands:
// https://www.freedesktop.org/software/systemd/man/sd-daemon.html
package log

import (
	"fmt"
	"io"
	"log"
	"os"
)

var logDateTime bool

var (
	DebugWriter io.Writer = os.Stderr
	NoteWriter  io.Writer = os.Stderr
	InfoWriter  io.Writer = os.Stderr
	WarnWriter  io.Writer = os.Stderr
	ErrWriter   io.Writer = os.Stderr
)

var (
	DebugPrefix string = "<7>[DEBUG]    "
	InfoPrefix  string = "<6>[INFO]     "
	NotePrefix  string = "<5>[NOTICE]   "
	WarnPrefix  string = "<4>[WARNING]  "
	ErrPrefix   string = "<3>[ERROR]    "
)

var (
	debugLog = log.New(DebugWriter, DebugPrefix, 0)
	infoLog  = log.New(InfoWriter, InfoPrefix, 0)
	noteLog  = log.New(NoteWriter, NotePrefix, log.Lshortfile)
	warnLog  = log.New(WarnWriter, WarnPrefix, log.Lshortfile)
	errLog   = log.New(ErrWriter, ErrPrefix, log.Llongfile)

	debugTimeLog = log.New(DebugWriter, DebugPrefix, log.LstdFlags)
	infoTimeLog  = log.New(InfoWriter, InfoPrefix, log.LstdFlags)
	noteTimeLog  = log.New(NoteWriter, NotePrefix, log.LstdFlags|log.Lshortfile)
	warnTimeLog  = log.New(WarnWriter, WarnPrefix, log.LstdFlags|log.Lshortfile)
	errTimeLog   = log.New(ErrWriter, ErrPrefix, log.LstdFlags|log.Llongfile)
)

// SetLogLevel discards every writer below lvl. Levels cascade: "warn"
// silences info and debug too, not just itself.
func SetLogLevel(lvl string) {
	switch lvl {
	case "err", "fatal":
		WarnWriter = io.Discard
		fallthrough
	case "warn":
		NoteWriter = io.Discard
		fallthrough
	case "notice":
		InfoWriter = io.Discard
		fallthrough
	case "info":
		DebugWriter = io.Discard
	case "debug":
		// nothing discarded
	default:
		fmt.Printf("log: invalid loglevel %q, using \"debug\"\n", lvl)
		SetLogLevel("debug")
	}
}

func SetLogDateTime(logdate bool) {
	logDateTime = logdate
}

func Debug(v ...interface{}) {
	if DebugWriter == io.Discard {
		return
	}
	out := fmt.Sprint(v...)
	if logDateTime {
		debugTimeLog.Output(2, out)
	} else {
		debugLog.Output(2, out)
	}
}

func Info(v ...interface{}) {
	if InfoWriter == io.Discard {
		return
	}
	out := fmt.Sprint(v...)
	if logDateTime {
		infoTimeLog.Output(2, out)
	} else {
		infoLog.Output(2, out)
	}
}

func Note(v ...interface{}) {
	if NoteWriter == io.Discard {
		return
	}
	out := fmt.Sprint(v...)
	if logDateTime {
		noteTimeLog.Output(2, out)
	} else {
		noteLog.Output(2, out)
	}
}

func Warn(v ...interface{}) {
	if WarnWriter == io.Discard {
		return
	}
	out := fmt.Sprint(v...)
	if logDateTime {
		warnTimeLog.Output(2, out)
	} else {
		warnLog.Output(2, out)
	}
}

func Error(v ...interface{}) {
	if ErrWriter == io.Discard {
		return
	}
	out := fmt.Sprint(v...)
	if logDateTime {
		errTimeLog.Output(2, out)
	} else {
		errLog.Output(2, out)
	}
}

// Fatal logs at ERROR and exits 1 -- used for startup failures the
// leader cannot recover from (bad config, unopenable store).
func Fatal(v ...interface{}) {
	Error(v...)
	os.Exit(1)
}

// The f-variants duplicate their non-f counterpart's body rather than
// calling it, so log.Llongfile/log.Lshortfile report the caller of
// Warnf/Errorf/etc., not this package.

func Debugf(format string, v ...interface{}) {
	if DebugWriter == io.Discard {
		return
	}
	out := fmt.Sprintf(format, v...)
	if logDateTime {
		debugTimeLog.Output(2, out)
	} else {
		debugLog.Output(2, out)
	}
}

func Infof(format string, v ...interface{}) {
	if InfoWriter == io.Discard {
		return
	}
	out := fmt.Sprintf(format, v...)
	if logDateTime {
		infoTimeLog.Output(2, out)
	} else {
		infoLog.Output(2, out)
	}
}

func Notef(format string, v ...interface{}) {
	if NoteWriter == io.Discard {
		return
	}
	out := fmt.Sprintf(format, v...)
	if logDateTime {
		noteTimeLog.Output(2, out)
	} else {
		noteLog.Output(2, out)
	}
}

func Warnf(format string, v ...interface{}) {
	if WarnWriter == io.Discard {
		return
	}
	out := fmt.Sprintf(format, v...)
	if logDateTime {
		warnTimeLog.Output(2, out)
	} else {
		warnLog.Output(2, out)
	}
}

func Errorf(format string, v ...interface{}) {
	if ErrWriter == io.Discard {
		return
	}
	out := fmt.Sprintf(format, v...)
	if logDateTime {
		errTimeLog.Output(2, out)
	} else {
		errLog.Output(2, out)
	}
}

func Fatalf(format string, v ...interface{}) {
	Errorf(format, v...)
	os.Exit(1)
}

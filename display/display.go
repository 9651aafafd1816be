package display

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

const (
	timeLayout = "2006-01-02 15:04:05"
	separator  = "==========================================================="
)

var (
	outMu sync.Mutex
	out   io.Writer = color.Output
)

// SetOutput 替换控制台输出，主要用于测试
func SetOutput(w io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	out = w
}

func write(s string) {
	outMu.Lock()
	defer outMu.Unlock()
	fmt.Fprint(out, s)
}

func now() string {
	return time.Now().Format(timeLayout)
}

// PrintfWithTime 带时间前缀输出一行
func PrintfWithTime(format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	write(fmt.Sprintf("[%s] %s", now(), msg))
	mirror().Info(strings.TrimSpace(msg))
}

// Title 输出分隔线 + 标题
func Title(title string) {
	write(separator + "\n" + title + ":\n")
}

// Field 按列对齐输出 name: value
func Field(name string, value interface{}) {
	write(fmt.Sprintf("%-20s%v\n", name+":", value))
}

func Success(format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	write(color.HiGreenString("[%s] %s\n", now(), msg))
	mirror().Info(msg)
}

func Pending(format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	write(color.HiYellowString("[%s] %s\n", now(), msg))
	mirror().Info(msg)
}

func Warn(format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	write(color.YellowString("[%s] WARNING: %s\n", now(), msg))
	mirror().Warn(msg)
}

func Fail(format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	write(color.HiRedString("[%s] %s\n", now(), msg))
	mirror().Error(msg)
}

func Info(format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	write(color.HiBlueString("%s\n", msg))
	mirror().Info(msg)
}

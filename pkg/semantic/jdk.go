package semantic

// wellKnownSupers gives the superclass of common platform types so exception
// matching can climb their hierarchy even when no catalog describes them.
var wellKnownSupers = map[string]string{
	"java.lang.Throwable":                        "java.lang.Object",
	"java.lang.Exception":                        "java.lang.Throwable",
	"java.lang.Error":                            "java.lang.Throwable",
	"java.lang.RuntimeException":                 "java.lang.Exception",
	"java.lang.IllegalArgumentException":         "java.lang.RuntimeException",
	"java.lang.NumberFormatException":            "java.lang.IllegalArgumentException",
	"java.lang.IllegalStateException":            "java.lang.RuntimeException",
	"java.lang.NullPointerException":             "java.lang.RuntimeException",
	"java.lang.ArithmeticException":              "java.lang.RuntimeException",
	"java.lang.ClassCastException":               "java.lang.RuntimeException",
	"java.lang.IndexOutOfBoundsException":        "java.lang.RuntimeException",
	"java.lang.ArrayIndexOutOfBoundsException":   "java.lang.IndexOutOfBoundsException",
	"java.lang.StringIndexOutOfBoundsException":  "java.lang.IndexOutOfBoundsException",
	"java.lang.NegativeArraySizeException":       "java.lang.RuntimeException",
	"java.lang.ArrayStoreException":              "java.lang.RuntimeException",
	"java.lang.UnsupportedOperationException":    "java.lang.RuntimeException",
	"java.lang.SecurityException":                "java.lang.RuntimeException",
	"java.lang.InterruptedException":             "java.lang.Exception",
	"java.lang.CloneNotSupportedException":       "java.lang.Exception",
	"java.lang.ReflectiveOperationException":     "java.lang.Exception",
	"java.lang.ClassNotFoundException":           "java.lang.ReflectiveOperationException",
	"java.lang.NoSuchMethodException":            "java.lang.ReflectiveOperationException",
	"java.lang.NoSuchFieldException":             "java.lang.ReflectiveOperationException",
	"java.lang.InstantiationException":           "java.lang.ReflectiveOperationException",
	"java.lang.IllegalAccessException":           "java.lang.ReflectiveOperationException",
	"java.lang.AssertionError":                   "java.lang.Error",
	"java.lang.LinkageError":                     "java.lang.Error",
	"java.lang.VirtualMachineError":              "java.lang.Error",
	"java.lang.OutOfMemoryError":                 "java.lang.VirtualMachineError",
	"java.lang.StackOverflowError":               "java.lang.VirtualMachineError",
	"java.io.IOException":                        "java.lang.Exception",
	"java.io.FileNotFoundException":              "java.io.IOException",
	"java.io.EOFException":                       "java.io.IOException",
	"java.io.UncheckedIOException":               "java.lang.RuntimeException",
	"java.util.NoSuchElementException":           "java.lang.RuntimeException",
	"java.util.ConcurrentModificationException":  "java.lang.RuntimeException",
	"java.util.concurrent.ExecutionException":    "java.lang.Exception",
	"java.util.concurrent.TimeoutException":      "java.lang.Exception",
	"java.sql.SQLException":                      "java.lang.Exception",
	"java.text.ParseException":                   "java.lang.Exception",
	"java.net.MalformedURLException":             "java.io.IOException",
	"java.net.URISyntaxException":                "java.lang.Exception",
	"java.nio.file.NoSuchFileException":          "java.nio.file.FileSystemException",
	"java.nio.file.FileSystemException":          "java.io.IOException",
	"java.lang.Enum":                             "java.lang.Object",
	"java.lang.String":                           "java.lang.Object",
	"java.lang.Number":                           "java.lang.Object",
	"java.lang.Integer":                          "java.lang.Number",
	"java.lang.Long":                             "java.lang.Number",
	"java.lang.Double":                           "java.lang.Number",
	"java.util.concurrent.CancellationException": "java.lang.IllegalStateException",
}

const (
	objectClass           = "java.lang.Object"
	enumClass             = "java.lang.Enum"
	runtimeExceptionClass = "java.lang.RuntimeException"
	errorClass            = "java.lang.Error"
)

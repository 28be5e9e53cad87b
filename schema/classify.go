package schema

// Error classifications attached to ErrorOutputs.
const (
	// ClassMissingDependency marks import failures for uninstalled packages.
	ClassMissingDependency = "missing_dependency"
	// ClassSyntax marks syntax and indentation errors.
	ClassSyntax = "syntax"
	// ClassInterrupt marks user-initiated interrupts.
	ClassInterrupt = "interrupt"
	// ClassResource marks out-of-memory and similar resource failures.
	ClassResource = "resource"
	// ClassName marks undefined-name errors.
	ClassName = "name"
	// ClassConnection marks client-side connection failures.
	ClassConnection = "connection"
)

// ClassifyError derives a classification tag and suggestions from a kernel
// error name. Unknown names yield no classification.
func ClassifyError(name string) (string, []string) {
	switch name {
	case "ModuleNotFoundError", "ImportError":
		return ClassMissingDependency, []string{
			"install the missing package in the kernel environment, e.g. pip install <package>",
		}
	case "SyntaxError", "IndentationError", "TabError":
		return ClassSyntax, []string{
			"check the cell source near the reported line",
		}
	case "KeyboardInterrupt":
		return ClassInterrupt, nil
	case "MemoryError":
		return ClassResource, []string{
			"reduce the working set or reset the kernel to reclaim memory",
		}
	case "NameError":
		return ClassName, []string{
			"run the cell that defines the name first; kernel state resets on reset_kernel",
		}
	}
	return "", nil
}

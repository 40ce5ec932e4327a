// Package loader reads authored timelines and tasks from disk.
//
// Documents may be written as YAML, JSON or CUE. The format is chosen by
// file extension. CUE documents are evaluated first and must be concrete;
// the resulting value is decoded through its JSON form so that every
// format shares the same lenient number handling.
//
// DirLookup serves a directory of task files to the compiler as a
// compiler.TaskLookup.
package loader

package cache

import (
	"fmt"
	"reflect"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// keySeparator 键前缀与各参数片段之间的固定分隔符。
const keySeparator = ":"

// BuildKey 根据键前缀、有序的参数映射和按名索引的调用参数构造确定性的缓存键。
//
// 对每个映射按声明顺序解析：无 RequestIdentifier 时追加参数值的文本表示；
// 有 RequestIdentifier 时把参数当作结构化值，提取命名字段后追加其文本表示。
// 映射顺序不同则键不同。纯函数，无副作用。
//
// 失败情况：参数名不存在于调用参数集 → ErrParameterNotFound；
// 字段在参数对象上不存在或不可访问 → ErrIdentifierNotFound。
func BuildKey(prefix string, mappings []ParameterMapping, args map[string]interface{}) (string, error) {
	fragments := make([]string, 0, len(mappings)+1)
	fragments = append(fragments, prefix)

	for _, mapping := range mappings {
		arg, ok := args[mapping.ParameterName]
		if !ok {
			err := NewCacheError(ErrParameterNotFound, "parameter not found in call arguments")
			err.WithContext("parameter", mapping.ParameterName)
			return "", err
		}

		value := arg
		if mapping.RequestIdentifier != "" {
			field, err := extractField(arg, mapping.RequestIdentifier)
			if err != nil {
				return "", err
			}
			value = field
		}

		fragments = append(fragments, stringify(value))
	}

	return strings.Join(fragments, keySeparator), nil
}

// extractField 从结构化参数中提取命名字段的值。
// 支持 map[string]* 和（指针指向的）结构体；其余类型视为不可提取。
func extractField(arg interface{}, identifier string) (interface{}, error) {
	if arg == nil {
		return nil, identifierError(identifier, "argument is nil")
	}

	v := reflect.ValueOf(arg)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, identifierError(identifier, "argument is nil")
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, identifierError(identifier, "map keys are not strings")
		}
		mv := v.MapIndex(reflect.ValueOf(identifier))
		if !mv.IsValid() {
			return nil, identifierError(identifier, "field not present in map argument")
		}
		return mv.Interface(), nil

	case reflect.Struct:
		fv := v.FieldByName(identifier)
		if !fv.IsValid() {
			return nil, identifierError(identifier, "field not present on struct argument")
		}
		if !fv.CanInterface() {
			return nil, identifierError(identifier, "field is not accessible")
		}
		return fv.Interface(), nil

	default:
		return nil, identifierError(identifier, "argument is not a structured value")
	}
}

func identifierError(identifier, message string) error {
	err := NewCacheError(ErrIdentifierNotFound, message)
	err.WithContext("identifier", identifier)
	return err
}

// stringify 把值转换为NFC规范化的文本表示，保证同一逻辑值产生
// 逐字节相同的键片段。
func stringify(value interface{}) string {
	return norm.NFC.String(fmt.Sprintf("%v", value))
}

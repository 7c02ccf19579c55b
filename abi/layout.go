package abi

import "go.bytecodealliance.org/wit"

// Info is the canonical ABI size and alignment of a type.
// Payload is the offset of the case payload for variant-like types.
type Info struct {
	FieldOffs map[string]uint32
	Size      uint32
	Align     uint32
	Payload   uint32
}

// Calculator computes canonical ABI layouts, caching type definitions.
type Calculator struct {
	cache map[*wit.TypeDef]Info
}

func NewCalculator() *Calculator {
	return &Calculator{
		cache: make(map[*wit.TypeDef]Info),
	}
}

func AlignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

func DiscriminantSize(numCases int) uint32 {
	if numCases <= 256 {
		return 1
	} else if numCases <= 65536 {
		return 2
	}
	return 4
}

func (c *Calculator) Calculate(t wit.Type) Info {
	switch typ := t.(type) {
	case wit.U8, wit.S8, wit.Bool:
		return Info{Size: 1, Align: 1}
	case wit.U16, wit.S16:
		return Info{Size: 2, Align: 2}
	case wit.U32, wit.S32, wit.F32, wit.Char:
		return Info{Size: 4, Align: 4}
	case wit.U64, wit.S64, wit.F64:
		return Info{Size: 8, Align: 8}
	case wit.String:
		return Info{Size: 8, Align: 4}
	case *wit.TypeDef:
		return c.calculateTypeDef(typ)
	default:
		return Info{Size: 0, Align: 1}
	}
}

func (c *Calculator) calculateTypeDef(t *wit.TypeDef) Info {
	if cached, ok := c.cache[t]; ok {
		return cached
	}

	var info Info

	switch kind := t.Kind.(type) {
	case *wit.Record:
		info = c.calculateRecord(kind)
	case *wit.Variant:
		info = c.calculateVariant(kind)
	case *wit.Enum:
		size := DiscriminantSize(len(kind.Cases))
		info = Info{Size: size, Align: size}
	case *wit.List:
		info = Info{Size: 8, Align: 4}
	case *wit.Option:
		info = c.caseLayout(2, c.Calculate(kind.Type))
	case *wit.Result:
		info = c.calculateResult(kind)
	case *wit.Tuple:
		info = c.calculateTuple(kind)
	case wit.Type:
		info = c.Calculate(kind)
	default:
		info = Info{Size: 0, Align: 1}
	}

	c.cache[t] = info
	return info
}

func (c *Calculator) calculateRecord(r *wit.Record) Info {
	if len(r.Fields) == 0 {
		return Info{Size: 0, Align: 1}
	}

	fieldOffs := make(map[string]uint32, len(r.Fields))
	maxAlign := uint32(1)
	offset := uint32(0)

	for _, field := range r.Fields {
		fl := c.Calculate(field.Type)
		offset = AlignTo(offset, fl.Align)
		fieldOffs[field.Name] = offset
		if fl.Align > maxAlign {
			maxAlign = fl.Align
		}
		offset += fl.Size
	}

	return Info{
		Size:      AlignTo(offset, maxAlign),
		Align:     maxAlign,
		FieldOffs: fieldOffs,
	}
}

func (c *Calculator) calculateVariant(v *wit.Variant) Info {
	payload := Info{Size: 0, Align: 1}
	for _, cs := range v.Cases {
		if cs.Type == nil {
			continue
		}
		cl := c.Calculate(cs.Type)
		if cl.Align > payload.Align {
			payload.Align = cl.Align
		}
		if cl.Size > payload.Size {
			payload.Size = cl.Size
		}
	}
	return c.caseLayout(len(v.Cases), payload)
}

func (c *Calculator) calculateResult(r *wit.Result) Info {
	payload := Info{Size: 0, Align: 1}
	for _, t := range []wit.Type{r.OK, r.Err} {
		if t == nil {
			continue
		}
		l := c.Calculate(t)
		if l.Align > payload.Align {
			payload.Align = l.Align
		}
		if l.Size > payload.Size {
			payload.Size = l.Size
		}
	}
	return c.caseLayout(2, payload)
}

// caseLayout places a discriminant followed by the widest case payload.
func (c *Calculator) caseLayout(cases int, payload Info) Info {
	disc := DiscriminantSize(cases)
	align := payload.Align
	if disc > align {
		align = disc
	}
	off := AlignTo(disc, payload.Align)
	return Info{
		Size:    AlignTo(off+payload.Size, align),
		Align:   align,
		Payload: off,
	}
}

func (c *Calculator) calculateTuple(t *wit.Tuple) Info {
	if len(t.Types) == 0 {
		return Info{Size: 0, Align: 1}
	}

	maxAlign := uint32(1)
	offset := uint32(0)
	for _, typ := range t.Types {
		el := c.Calculate(typ)
		offset = AlignTo(offset, el.Align)
		if el.Align > maxAlign {
			maxAlign = el.Align
		}
		offset += el.Size
	}

	return Info{
		Size:  AlignTo(offset, maxAlign),
		Align: maxAlign,
	}
}

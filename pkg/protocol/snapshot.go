package protocol

// Info describes the loaded cartridge. When HasGame is false no other field
// is encoded.
type Info struct {
	HasGame bool

	FileName string
	Sha1     string

	Crc32       uint32
	PrgCrc32    uint32
	PrgChrCrc32 uint32

	MapperID    uint16
	SubmapperID uint8
	Mirroring   uint8

	PrgRomSize     int32
	ChrRomSize     int32
	WorkRamSize    int32
	SaveRamSize    int32
	ChrRamSize     int32
	SaveChrRamSize int32
}

// Sync is a point-in-time CPU/PPU snapshot. Valid is not encoded; an
// invalid snapshot is never sent.
type Sync struct {
	Valid  bool
	Reason SyncReason

	CPUCycleCount uint64
	Scanline      int16
	Dot           uint16

	PC uint16
	A  uint8
	X  uint8
	Y  uint8
	SP uint8
	PS uint8
}

// syncPayloadSize is reason + 40-bit cycle + scanline + dot + pc + 5 registers.
const syncPayloadSize = 1 + 5 + 2 + 2 + 2 + 5

// EncodeInfo encodes an Info payload.
func EncodeInfo(info *Info) []byte {
	if !info.HasGame {
		return []byte{0}
	}

	e := NewEncoderWithCap(128 + len(info.FileName) + len(info.Sha1))
	EncodeInfoTo(e, info)
	return e.Bytes()
}

// EncodeInfoTo encodes an Info payload using the provided encoder.
func EncodeInfoTo(e *Encoder, info *Info) {
	e.WriteBool(info.HasGame)
	if !info.HasGame {
		return
	}

	fileName, sha1 := fitInfoStrings(info.FileName, info.Sha1)
	e.WriteLen16String(fileName)
	e.WriteLen16String(sha1)
	e.WriteU32LE(info.Crc32)
	e.WriteU32LE(info.PrgCrc32)
	e.WriteU32LE(info.PrgChrCrc32)
	e.WriteU16LE(info.MapperID)
	e.WriteU8(info.SubmapperID)
	e.WriteU8(info.Mirroring)

	e.WriteI32LE(info.PrgRomSize)
	e.WriteI32LE(info.ChrRomSize)
	e.WriteI32LE(info.WorkRamSize)
	e.WriteI32LE(info.SaveRamSize)
	e.WriteI32LE(info.ChrRamSize)
	e.WriteI32LE(info.SaveChrRamSize)
}

// infoFixedSize is the size of a HasGame Info payload with empty strings.
const infoFixedSize = 1 + 2 + 2 + 3*4 + 2 + 1 + 1 + 6*4

// fitInfoStrings trims the strings of an Info payload so the whole payload
// stays within MaxPayloadSize. The file name gives way first.
func fitInfoStrings(fileName, sha1 string) (string, string) {
	room := MaxPayloadSize - infoFixedSize
	if len(sha1) > room {
		sha1 = sha1[:room]
	}
	room -= len(sha1)
	if len(fileName) > room {
		fileName = fileName[:room]
	}
	return fileName, sha1
}

// DecodeInfo decodes an Info payload.
func DecodeInfo(data []byte) (*Info, error) {
	d := NewDecoder(data)
	info := &Info{}
	var err error

	if info.HasGame, err = d.ReadBool(); err != nil {
		return nil, err
	}
	if !info.HasGame {
		return info, nil
	}

	if info.FileName, err = d.ReadLen16String(); err != nil {
		return nil, err
	}
	if info.Sha1, err = d.ReadLen16String(); err != nil {
		return nil, err
	}
	if info.Crc32, err = d.ReadU32LE(); err != nil {
		return nil, err
	}
	if info.PrgCrc32, err = d.ReadU32LE(); err != nil {
		return nil, err
	}
	if info.PrgChrCrc32, err = d.ReadU32LE(); err != nil {
		return nil, err
	}
	if info.MapperID, err = d.ReadU16LE(); err != nil {
		return nil, err
	}
	if info.SubmapperID, err = d.ReadU8(); err != nil {
		return nil, err
	}
	if info.Mirroring, err = d.ReadU8(); err != nil {
		return nil, err
	}

	sizes := []*int32{
		&info.PrgRomSize, &info.ChrRomSize, &info.WorkRamSize,
		&info.SaveRamSize, &info.ChrRamSize, &info.SaveChrRamSize,
	}
	for _, p := range sizes {
		if *p, err = d.ReadI32LE(); err != nil {
			return nil, err
		}
	}

	return info, nil
}

// EncodeSync encodes a Sync payload.
func EncodeSync(s *Sync) []byte {
	e := NewEncoderWithCap(syncPayloadSize)
	EncodeSyncTo(e, s)
	return e.Bytes()
}

// EncodeSyncTo encodes a Sync payload using the provided encoder.
func EncodeSyncTo(e *Encoder, s *Sync) {
	e.WriteU8(uint8(s.Reason))
	e.WriteCPUCycle40LE(s.CPUCycleCount)
	e.WriteI16LE(s.Scanline)
	e.WriteU16LE(s.Dot)
	e.WriteU16LE(s.PC)
	e.WriteU8(s.A)
	e.WriteU8(s.X)
	e.WriteU8(s.Y)
	e.WriteU8(s.SP)
	e.WriteU8(s.PS)
}

// DecodeSync decodes a Sync payload. The returned snapshot is marked Valid.
func DecodeSync(data []byte) (*Sync, error) {
	if len(data) < syncPayloadSize {
		return nil, ErrBufferTooShort
	}

	d := NewDecoder(data)
	reason, _ := d.ReadU8()
	cycles, _ := d.ReadCPUCycle40LE()
	scanline, _ := d.ReadI16LE()
	dot, _ := d.ReadU16LE()
	pc, _ := d.ReadU16LE()

	s := &Sync{
		Valid:         true,
		Reason:        SyncReason(reason),
		CPUCycleCount: cycles,
		Scanline:      scanline,
		Dot:           dot,
		PC:            pc,
	}
	for _, p := range []*uint8{&s.A, &s.X, &s.Y, &s.SP, &s.PS} {
		*p, _ = d.ReadU8()
	}

	return s, nil
}
